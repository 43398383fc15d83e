/*
Package uemux provides the shared types of a multi-UE signal combining and
distribution pipeline.

Several independent UE sample streams are pulled from remote generators over
request/reply sockets, scaled by per-branch gains, summed into one combined
stream, paced to a target sample rate and republished for any number of
consumers, alongside free-running per-branch taps.

The root package holds the scalar types and the wire codec. The pipeline
engine lives in the pipe package, stage implementations in gain, mixer,
split, throttle, natsq and wavtap, and the declarative topology in flow.
*/
package uemux
