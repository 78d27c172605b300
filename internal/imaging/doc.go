// Package imaging provides the image plumbing for emblem matching.
//
// This package implements image loading, edge extraction, resizing for the
// scale pyramid, and simple annotation (boxes and labels) for diagnostic
// renders. All operations work with standard Go image.Image types and use a
// coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Edge Maps
//
// Edge maps are *image.Gray values with a zero origin and the same size as
// their input. Every sample is either EdgeOn (255) or EdgeOff (0).
// EdgeDetect always smooths with a 5x5 Gaussian before taking gradients. Two
// policies produce edge maps:
//   - FixedEdges: EdgeDetect with constant thresholds (default 150/200)
//   - AdaptiveEdges: median blur, then thresholds derived from the median
//     intensity (AutoEdgeDetect)
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based. For regions, (x1,y1) is
// inclusive (top-left) and (x2,y2) is exclusive (bottom-right), matching
// image.Rectangle.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Error Handling
//
// Load and Decode wrap every failure in ErrImageDecode. Crop returns errors
// for regions outside the image or empty regions.
package imaging
