// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Message-boundary detection for byte-stream channels.
//
// The transport imposes no framing of its own. A user-supplied Detector
// classifies a run of pending bytes into "consumed" (complete message bytes)
// and "needed" (additional bytes required before it is worth asking again).
// A Segmenter drives the detector for one channel:
//   - ModeZeroCopy: after a detector call that leaves bytes pending and
//     reports needed == 0, the detector is invoked again immediately on the
//     remainder. Each consumed run becomes its own Data message referencing
//     a sub-range of the shared accumulation blob.
//   - ModeCoalescing: the deprecated mode. The detector runs once per
//     physical read; everything it consumed is delivered as one message.
//
// HeaderDetector is a ready-made detector for length-prefixed protocols.
package protocol
