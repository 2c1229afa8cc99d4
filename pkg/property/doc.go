// Package property implements the typed, context-keyed attributes that the
// observer core attaches to subjects.
//
// # Values
//
// A [Value] is a tagged union over string, integer, bool, blob and
// reference (an observer context ID). The zero Value is invalid and is used
// to signal "no value".
//
// # Property Kinds
//
// Two kinds of properties exist:
//
//	Property        name -> (contextID -> Value)
//	SharedProperty  name -> Value (same for every context)
//
// Both carry [Flags] (exportable, reserved, removable, notify) and record the
// context that changed them last.
//
// # Access
//
// Reserved properties belong to the framework. Client writes use
// [AccessClient] and fail with [ErrReserved]; the observer core writes with
// [AccessFramework].
//
// # Change Notification
//
// A [Store] notifies its [ChangeListener]s when a property with the Notify
// flag changes value.
package property
