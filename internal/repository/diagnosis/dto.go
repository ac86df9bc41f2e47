package diagnosis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

// recordToHash converts a Record to a map for HSET.
func recordToHash(rec domdiag.Record) (map[string]string, error) {
	precautions, err := json.Marshal(rec.Precautions())
	if err != nil {
		return nil, fmt.Errorf("marshal precautions: %w", err)
	}
	return map[string]string{
		"id":          rec.ID(),
		"user_id":     rec.UserID(),
		"disease":     rec.Disease(),
		"probability": strconv.FormatFloat(rec.Probability(), 'f', -1, 64),
		"description": rec.Description(),
		"precautions": string(precautions),
		"symptoms":    rec.Symptoms(),
		"image_ref":   rec.ImageRef(),
		"source":      string(rec.Source()),
		"created_at":  rec.CreatedAt().Format(time.RFC3339Nano),
	}, nil
}

// recordFromHash hydrates a Record from an HGETALL result map.
func recordFromHash(m map[string]string) (domdiag.Record, error) {
	probability, err := strconv.ParseFloat(m["probability"], 64)
	if err != nil {
		return domdiag.Record{}, fmt.Errorf("invalid probability: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, m["created_at"])
	if err != nil {
		return domdiag.Record{}, fmt.Errorf("invalid created_at: %w", err)
	}
	precautions, err := decodePrecautions([]byte(m["precautions"]))
	if err != nil {
		return domdiag.Record{}, err
	}

	return domdiag.Reconstruct(
		m["id"], m["user_id"], m["disease"], probability, m["description"], precautions,
		m["symptoms"], m["image_ref"], evidence.Source(m["source"]), createdAt,
	), nil
}

func decodePrecautions(raw []byte) ([]string, error) {
	precautions := []string{}
	if len(raw) == 0 {
		return precautions, nil
	}
	if err := json.Unmarshal(raw, &precautions); err != nil {
		return nil, fmt.Errorf("unmarshal precautions: %w", err)
	}
	if precautions == nil {
		precautions = []string{}
	}
	return precautions, nil
}
