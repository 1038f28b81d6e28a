// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

// Message is any frame payload that can be encoded.
type Message interface {
	// Type returns the 7-bit type code, without the start marker.
	Type() uint8
}

// ControllerMessage is a command sent to the controller.
type ControllerMessage interface {
	Message
	controllerMessage()
}

// RemoteMessage is a result or event sent to the remote host.
type RemoteMessage interface {
	Message
	remoteMessage()
}

// SetDebugLED switches the controller's debug LED.
type SetDebugLED struct {
	On bool
}

// GetParameter asks for the current value of a parameter.
// The controller answers with GetParameterResult.
type GetParameter struct {
	Parameter Parameter
}

// SetParameter writes a parameter value.
type SetParameter struct {
	Value ParameterValue
}

// GetStatistic asks for a statistic. The controller answers with
// GetStatisticResult.
type GetStatistic struct {
	Statistic Statistic
}

// ResetStatistics clears all statistics on the controller.
type ResetStatistics struct{}

// KeepAlive must be sent periodically while running; the controller stops
// driving when it goes quiet.
type KeepAlive struct{}

// Run starts the driver.
type Run struct{}

// Stop stops the driver.
type Stop struct{}

// Ping carries a 28-bit sequence number. The receiver echoes it back with a
// Ping of its own, so the type travels both ways.
type Ping struct {
	Seq uint32
}

// GetParameterResult answers GetParameter.
type GetParameterResult struct {
	Value ParameterValue
}

// GetStatisticResult answers GetStatistic.
type GetStatisticResult struct {
	Value StatisticValue
}

// LockFailed reports that the driver did not reach phase lock within LockTime.
type LockFailed struct{}

// OCDTripped reports that over-current detection shut the driver down.
type OCDTripped struct{}

func (SetDebugLED) Type() uint8        { return MsgSetDebugLED }
func (GetParameter) Type() uint8       { return MsgGetParameter }
func (SetParameter) Type() uint8       { return MsgSetParameter }
func (GetStatistic) Type() uint8       { return MsgGetStatistic }
func (ResetStatistics) Type() uint8    { return MsgResetStatistics }
func (KeepAlive) Type() uint8          { return MsgKeepAlive }
func (Run) Type() uint8                { return MsgRun }
func (Stop) Type() uint8               { return MsgStop }
func (Ping) Type() uint8               { return MsgPing }
func (GetParameterResult) Type() uint8 { return MsgGetParameterResult }
func (GetStatisticResult) Type() uint8 { return MsgGetStatisticResult }
func (LockFailed) Type() uint8         { return MsgLockFailed }
func (OCDTripped) Type() uint8         { return MsgOCDTripped }

func (SetDebugLED) controllerMessage()     {}
func (GetParameter) controllerMessage()    {}
func (SetParameter) controllerMessage()    {}
func (GetStatistic) controllerMessage()    {}
func (ResetStatistics) controllerMessage() {}
func (KeepAlive) controllerMessage()       {}
func (Run) controllerMessage()             {}
func (Stop) controllerMessage()            {}
func (Ping) controllerMessage()            {}

func (GetParameterResult) remoteMessage() {}
func (GetStatisticResult) remoteMessage() {}
func (LockFailed) remoteMessage()         {}
func (OCDTripped) remoteMessage()         {}
func (Ping) remoteMessage()               {}
