// Package main runs an exported trip prediction model on one feature vector.
// Raw features are standardized with the saved scaler parameters first.
//
//	infer_trip_model --model trip_prediction_model.tpm --scaler scaler_params.json 0.16 0.4 0.2 0.05 0.5 0.33 0.66 0.3 0.5 0.08
package main
