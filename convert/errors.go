package convert

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConversion is matched by every rejection of the compiler.
var ErrConversion = errors.New("convert: conversion failed")

// ConversionError describes why a model could not be compiled.
// Layer is -1 for graph level problems.
type ConversionError struct {
	Layer  int
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Layer < 0 {
		return fmt.Sprintf("convert: %s", e.Reason)
	}
	return fmt.Sprintf("convert: layer %d: %s", e.Layer, e.Reason)
}

// Unwrap lets errors.Is match ErrConversion.
func (e *ConversionError) Unwrap() error {
	return ErrConversion
}

func reject(layer int, format string, args ...interface{}) error {
	return &ConversionError{Layer: layer, Reason: fmt.Sprintf(format, args...)}
}
