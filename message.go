package main

import (
	"strconv"
	"strings"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"
)

const (
	MsgReportTitle   = "Pose Metrics"
	MsgNotAvailable  = "Not available"
	MsgElbowAngles   = "Elbow Flexion/Extension Angles:"
	MsgArmpitAngles  = "Armpit Angles:"
	MsgLegSeparation = "Leg Separation Angle (angle between the legs):"
	MsgKneeAngles    = "Knee Flexion/Extension Angles:"
)

// FormatReport renders angles as the plain-text report shown next to the
// overlay. source names the video or image and may be empty.
func FormatReport(source string, angles biomechanics.BodyAngles) string {
	var b strings.Builder

	b.WriteString(MsgReportTitle + "\n")
	if source != "" {
		b.WriteString("Video: " + source + "\n")
	}

	writeSides(&b, MsgElbowAngles, angles.ElbowAngles)
	writeSides(&b, MsgArmpitAngles, angles.ArmpitAngles)

	b.WriteString(MsgLegSeparation + "\n")
	b.WriteString(formatAngle(angles.LegSeparationTotal()) + "\n")

	writeSides(&b, MsgKneeAngles, angles.KneeAngles)

	return b.String()
}

func writeSides(b *strings.Builder, heading string, sa biomechanics.SideAngles) {
	b.WriteString(heading + "\n")
	b.WriteString("Left: " + formatAngle(sa.Left) + "\n")
	b.WriteString("Right: " + formatAngle(sa.Right) + "\n")
}

func formatAngle(a biomechanics.Angle) string {
	if !a.Valid {
		return MsgNotAvailable
	}
	return strconv.FormatFloat(a.Degrees, 'f', -1, 64) + " degrees"
}
