// Package match computes normalized cross-correlation surfaces between an
// edge map and an edge template.
//
// The score at each offset is the cosine similarity of the template and the
// image window beneath it, without mean subtraction:
//
//	R(x,y) = Σ I(x+i,y+j)·T(i,j) / sqrt(Σ I(x+i,y+j)² · Σ T(i,j)²)
//
// Window energies come from a summed-area table of I², and only the
// template's nonzero samples are visited when accumulating the numerator, so
// sparse edge templates stay cheap. Values are clamped to [0,1]; a window or
// template with zero energy scores 0.
//
// Rows of the surface are computed in parallel. Every cell is computed
// independently and the maximum is located by a sequential scan, so results
// are identical from run to run.
package match
