// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Encode validates and marshals a payload for the wire.
func Encode(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s payload: %w", p.Topic(), err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Topic(), err)
	}

	return data, nil
}

// DecodeVideoDiscovered unmarshals and validates a video-discovered payload.
func DecodeVideoDiscovered(data []byte) (*VideoDiscovered, error) {
	var e VideoDiscovered
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", TopicVideoDiscovered, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s payload: %w", TopicVideoDiscovered, err)
	}
	return &e, nil
}

// DecodeVideoHighRisk unmarshals and validates a video-high-risk payload.
func DecodeVideoHighRisk(data []byte) (*VideoHighRisk, error) {
	var e VideoHighRisk
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", TopicVideoHighRisk, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s payload: %w", TopicVideoHighRisk, err)
	}
	return &e, nil
}

// DecodeVisionFeedback unmarshals and validates a vision-feedback payload.
func DecodeVisionFeedback(data []byte) (*VisionFeedback, error) {
	var e VisionFeedback
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", TopicVisionFeedback, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s payload: %w", TopicVisionFeedback, err)
	}
	return &e, nil
}
