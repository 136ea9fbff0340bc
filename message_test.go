package main

import (
	"testing"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"

	"github.com/stretchr/testify/assert"
)

func TestFormatReport(t *testing.T) {
	angles := biomechanics.BodyAngles{
		ElbowAngles:        biomechanics.SideAngles{Left: biomechanics.Degrees(126.87), Right: biomechanics.Unavailable},
		ArmpitAngles:       biomechanics.SideAngles{Left: biomechanics.Degrees(35.5), Right: biomechanics.Degrees(40)},
		LegSeparationAngle: biomechanics.SideAngles{Left: biomechanics.Degrees(45), Right: biomechanics.Degrees(45)},
	}

	want := "Pose Metrics\n" +
		"Video: overhang.mp4\n" +
		"Elbow Flexion/Extension Angles:\n" +
		"Left: 126.87 degrees\n" +
		"Right: Not available\n" +
		"Armpit Angles:\n" +
		"Left: 35.5 degrees\n" +
		"Right: 40 degrees\n" +
		"Leg Separation Angle (angle between the legs):\n" +
		"90 degrees\n" +
		"Knee Flexion/Extension Angles:\n" +
		"Left: Not available\n" +
		"Right: Not available\n"

	assert.Equal(t, want, FormatReport("overhang.mp4", angles))
}

func TestFormatReportWithoutSource(t *testing.T) {
	report := FormatReport("", biomechanics.BodyAngles{})

	assert.NotContains(t, report, "Video:")
	assert.Contains(t, report, MsgLegSeparation+"\n"+MsgNotAvailable+"\n")
}
