package tui

import "time"

const (
	// Timeouts and Intervals
	TickInterval   = 500 * time.Millisecond
	RequestTimeout = 10 * time.Second
	NoticeDuration = 4 * time.Second

	// Input Dimensions
	InputWidth = 50

	// Layout
	ListWidthRatio   = 0.7
	HeaderHeight     = 9
	MinListHeight    = 8
	ProgressBarWidth = 20
	DefaultPaddingX  = 1
	DefaultPaddingY  = 0

	// Graph
	SpeedHistoryLen = 120
	Megabyte        = 1024.0 * 1024.0
)
