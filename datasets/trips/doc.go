// Package trips provides a synthetic trip-history dataset: ten numeric features
// describing a traveller's past trips and four probabilities describing what
// the traveller is likely to do next. Features come either from a naive uniform
// generator or from a realistic generator whose distributions follow each
// feature's meaning; labels are derived from features by a swappable policy.
package trips
