// Package cause translates network-supplied session termination codes into
// the user-facing disconnect-cause taxonomy and the diagnostic precise-cause
// taxonomy.
//
// Translation is a pure lookup pipeline: an optional carrier-configured remap
// of the raw reason code, a total mapping to a Disconnect value, and an
// independent mapping to a Precise value. The carrier remap table is replaced
// wholesale on configuration reload; individual lookups never mutate it.
package cause
