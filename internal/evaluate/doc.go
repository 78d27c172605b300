// Package evaluate runs the emblem scorer over a positive and a negative
// image directory and reports score distributions and confusion counts.
package evaluate
