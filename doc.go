// Package medlens embeds the diagnostic inference engine without the HTTP
// service: load a knowledge base from disk, then score symptoms and image
// classifier results against it.
//
// # Text only
//
//	eng, _ := medlens.Open("data")
//	res, _ := eng.Diagnose([]string{"itching, skin rash"}, nil)
//	if res.OK() {
//	    for _, c := range res.Candidates {
//	        fmt.Println(c.Disease, c.Score)
//	    }
//	}
//
// # Text and image
//
// Image results come from an external classifier. Probability is on the
// 0..1 scale; the engine reports it as a 0..100 score.
//
//	res, _ := eng.Diagnose(symptoms, &medlens.ImageResult{Label: "chicken pox", Probability: 0.91})
//
// # Observability
//
//	eng, _ := medlens.Open("data",
//	    medlens.WithLogger(logger),
//	    medlens.WithPrometheus(prometheus.DefaultRegisterer),
//	)
package medlens
