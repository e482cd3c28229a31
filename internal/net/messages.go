// Package net implements the TCP wire boundary: a binary command/report
// protocol and the gateway server that turns incoming
// wire messages into engine commands, registering itself as an observer to
// push reports back out. This package is an external collaborator at the
// edge of the core — the engine itself has no notion of the network.
package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"matchbook/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

// MessageType identifies an incoming command on the wire.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	AddOrder
	CancelOrder
	ModifyOrder
)

// ReportMessageType identifies an outgoing event on the wire, one per
// engine event kind.
type ReportMessageType uint8

const (
	ReportTradeExecuted ReportMessageType = iota
	ReportOrderAcknowledged
	ReportOrderCancelled
	ReportOrderModified
	ReportOrderRejected
	ReportTopOfBookUpdate
)

const (
	baseMessageHeaderLen = 2
	addOrderBodyLen      = 8 + 8 + 1 + 8 + 8 + 8 + 8 // order_id, user_id, side, quantity, price, ts_received, ts_executed
	cancelOrderBodyLen   = 8
	modifyOrderBodyLen   = 8 + 8 + 8

	reportFieldCount      = 15
	reportFixedHeaderLen  = 1 + reportFieldCount*8 // type byte + 15 uint64 fields
	reportReasonLenOffset = reportFixedHeaderLen
	reportReasonLenBytes  = 2
)

// AddOrderMessage is the wire form of add_order.
type AddOrderMessage struct {
	OrderID    uint64
	UserID     uint64
	Side       common.Side
	Quantity   uint64
	Price      uint64
	TsReceived uint64
	TsExecuted uint64
}

// CancelOrderMessage is the wire form of cancel_order.
type CancelOrderMessage struct {
	OrderID uint64
}

// ModifyOrderMessage is the wire form of modify_order.
type ModifyOrderMessage struct {
	OrderID     uint64
	NewQuantity uint64
	NewPrice    uint64
}

// ParseMessage decodes the type header and dispatches to the matching
// message body decoder.
func ParseMessage(msg []byte) (any, error) {
	if len(msg) < baseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case Heartbeat:
		return struct{}{}, nil
	case AddOrder:
		return parseAddOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case ModifyOrder:
		return parseModifyOrder(body)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageType, typeOf)
	}
}

func parseAddOrder(msg []byte) (AddOrderMessage, error) {
	if len(msg) < addOrderBodyLen {
		return AddOrderMessage{}, ErrMessageTooShort
	}
	return AddOrderMessage{
		OrderID:    binary.BigEndian.Uint64(msg[0:8]),
		UserID:     binary.BigEndian.Uint64(msg[8:16]),
		Side:       common.Side(msg[16]),
		Quantity:   binary.BigEndian.Uint64(msg[17:25]),
		Price:      binary.BigEndian.Uint64(msg[25:33]),
		TsReceived: binary.BigEndian.Uint64(msg[33:41]),
		TsExecuted: binary.BigEndian.Uint64(msg[41:49]),
	}, nil
}

// Encode serializes an AddOrderMessage for transmission.
func (m AddOrderMessage) Encode() []byte {
	buf := make([]byte, baseMessageHeaderLen+addOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(AddOrder))
	binary.BigEndian.PutUint64(buf[2:10], m.OrderID)
	binary.BigEndian.PutUint64(buf[10:18], m.UserID)
	buf[18] = byte(m.Side)
	binary.BigEndian.PutUint64(buf[19:27], m.Quantity)
	binary.BigEndian.PutUint64(buf[27:35], m.Price)
	binary.BigEndian.PutUint64(buf[35:43], m.TsReceived)
	binary.BigEndian.PutUint64(buf[43:51], m.TsExecuted)
	return buf
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < cancelOrderBodyLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	return CancelOrderMessage{OrderID: binary.BigEndian.Uint64(msg[0:8])}, nil
}

// Encode serializes a CancelOrderMessage for transmission.
func (m CancelOrderMessage) Encode() []byte {
	buf := make([]byte, baseMessageHeaderLen+cancelOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], m.OrderID)
	return buf
}

func parseModifyOrder(msg []byte) (ModifyOrderMessage, error) {
	if len(msg) < modifyOrderBodyLen {
		return ModifyOrderMessage{}, ErrMessageTooShort
	}
	return ModifyOrderMessage{
		OrderID:     binary.BigEndian.Uint64(msg[0:8]),
		NewQuantity: binary.BigEndian.Uint64(msg[8:16]),
		NewPrice:    binary.BigEndian.Uint64(msg[16:24]),
	}, nil
}

// Encode serializes a ModifyOrderMessage for transmission.
func (m ModifyOrderMessage) Encode() []byte {
	buf := make([]byte, baseMessageHeaderLen+modifyOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ModifyOrder))
	binary.BigEndian.PutUint64(buf[2:10], m.OrderID)
	binary.BigEndian.PutUint64(buf[10:18], m.NewQuantity)
	binary.BigEndian.PutUint64(buf[18:26], m.NewPrice)
	return buf
}

// Report is the wire form of every outgoing event. Unused fields
// for a given Type are left zero; this trades a few wasted bytes per
// message for a single fixed-shape encoder/decoder.
type Report struct {
	Type ReportMessageType

	OrderID          uint64
	ExecutionID      uint64
	AggressorOrderID uint64
	RestingOrderID   uint64
	AggressorUserID  uint64
	RestingUserID    uint64
	Price            uint64
	Quantity         uint64
	TsReceived       uint64
	TsExecuted       uint64
	NewQuantity      uint64
	NewPrice         uint64
	BestBid          uint64
	BestAsk          uint64
	Volume           uint64

	Reason string
}

// Serialize converts the report to its wire form.
func (r *Report) Serialize() []byte {
	reasonBytes := []byte(r.Reason)
	buf := make([]byte, reportFixedHeaderLen+reportReasonLenBytes+len(reasonBytes))

	buf[0] = byte(r.Type)
	fields := []uint64{
		r.OrderID, r.ExecutionID, r.AggressorOrderID, r.RestingOrderID,
		r.AggressorUserID, r.RestingUserID, r.Price, r.Quantity,
		r.TsReceived, r.TsExecuted, r.NewQuantity, r.NewPrice,
		r.BestBid, r.BestAsk, r.Volume,
	}
	for i, f := range fields {
		offset := 1 + i*8
		binary.BigEndian.PutUint64(buf[offset:offset+8], f)
	}

	binary.BigEndian.PutUint16(buf[reportReasonLenOffset:reportReasonLenOffset+2], uint16(len(reasonBytes)))
	copy(buf[reportReasonLenOffset+2:], reasonBytes)
	return buf
}

// ParseReport decodes a Report from its wire form.
func ParseReport(buf []byte) (*Report, error) {
	if len(buf) < reportFixedHeaderLen+reportReasonLenBytes {
		return nil, ErrMessageTooShort
	}

	r := &Report{Type: ReportMessageType(buf[0])}
	fields := make([]uint64, reportFieldCount)
	for i := range fields {
		offset := 1 + i*8
		fields[i] = binary.BigEndian.Uint64(buf[offset : offset+8])
	}
	r.OrderID, r.ExecutionID, r.AggressorOrderID, r.RestingOrderID = fields[0], fields[1], fields[2], fields[3]
	r.AggressorUserID, r.RestingUserID, r.Price, r.Quantity = fields[4], fields[5], fields[6], fields[7]
	r.TsReceived, r.TsExecuted, r.NewQuantity, r.NewPrice = fields[8], fields[9], fields[10], fields[11]
	r.BestBid, r.BestAsk, r.Volume = fields[12], fields[13], fields[14]

	reasonLen := int(binary.BigEndian.Uint16(buf[reportReasonLenOffset : reportReasonLenOffset+2]))
	if len(buf) < reportReasonLenOffset+2+reasonLen {
		return nil, ErrMessageTooShort
	}
	r.Reason = string(buf[reportReasonLenOffset+2 : reportReasonLenOffset+2+reasonLen])
	return r, nil
}
