// Package scorer finds a reference emblem in an image at any scale.
//
// A Scorer repeatedly shrinks the candidate image, extracts an edge map at
// each size and correlates it with the template's edge map. The best
// correlation over all pyramid levels is the image's score:
//
//	s, err := scorer.New(scorer.DefaultConfig())
//	tmpl, err := s.Template(logo)
//	res := s.Score(img, tmpl)
//	if res.Score >= classify.DefaultThreshold { ... }
//
// Scoring is synchronous and deterministic. A Template is read-only after
// creation and may be shared by any number of goroutines.
//
// # Backends
//
// The image primitives (edges, correlation, resizing) come from a Backend.
// The "native" backend is pure Go. Building with the gocv tag registers an
// "opencv" backend that runs the same steps through OpenCV.
package scorer
