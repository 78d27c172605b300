// Package render draws score histograms and match diagnostics as images.
package render
