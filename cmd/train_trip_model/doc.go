// Package main trains the basic and improved trip prediction models, exports
// them through the fallback tiers and verifies the written artifacts.
//
//	train_trip_model --config run.yaml --out build --quantize
package main
