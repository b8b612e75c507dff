// Package signaling defines the call setup messages exchanged with the call
// server and the remote party.
//
// Messages are MessagePack arrays: a CallRequest is
//
//	[ID(bin16), FROM(str), TO(str), REQUESTED_AT(timestamp)]
//
// and a CallResponse is
//
//	[REQUEST(CallRequest), EVENT(int)]
//
// Transport and encryption of these messages are the caller's concern.
package signaling
