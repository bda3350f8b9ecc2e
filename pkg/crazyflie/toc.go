package crazyflie

import (
	"context"
	"fmt"

	"github.com/AkihikoHONDA/crazyflie-go/pkg/crtp"
)

// RequestLogTOC discovers the vehicle's logging-variable table of contents.
// The previous TOC is replaced wholesale; on any batch timeout no partial
// TOC is retained.
func (cf *Crazyflie) RequestLogTOC(ctx context.Context) error {
	cf.startBatch()
	cf.addRequest(crtp.LogGetInfoRequest{}, 1)
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("log TOC info: %w", err)
	}
	info, err := crtp.ParseLogGetInfoResponse(cf.result(0))
	if err != nil {
		return fmt.Errorf("log TOC info: %w", err)
	}
	n := int(info.Len)
	cf.logger.Info("Crazyflie %s: log TOC has %d entries", cf.addr, n)

	cf.startBatch()
	for i := 0; i < n; i++ {
		cf.addRequest(crtp.LogGetItemRequest{ID: uint8(i)}, 2)
	}
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("log TOC items: %w", err)
	}

	entries := make([]LogTOCEntry, n)
	for i := 0; i < n; i++ {
		item, err := crtp.ParseLogGetItemResponse(cf.result(i))
		if err != nil {
			return fmt.Errorf("log TOC item %d: %w", i, err)
		}
		entries[i] = LogTOCEntry{
			ID:    uint8(i),
			Type:  item.Type,
			Group: item.Group,
			Name:  item.Name,
		}
	}
	cf.logTOC = entries
	return nil
}

// LogTOC returns the discovered logging TOC.
func (cf *Crazyflie) LogTOC() []LogTOCEntry {
	return cf.logTOC
}

// LogTOCEntryByName looks up a logging variable by group and name.
func (cf *Crazyflie) LogTOCEntryByName(group, name string) (LogTOCEntry, bool) {
	for _, entry := range cf.logTOC {
		if entry.Group == group && entry.Name == name {
			return entry, true
		}
	}
	return LogTOCEntry{}, false
}

// RequestParamTOC discovers the vehicle's parameter table of contents and
// populates the local value cache in the same round trip: phase 2 issues a
// detail request and a value read per item in one batch.
func (cf *Crazyflie) RequestParamTOC(ctx context.Context) error {
	cf.startBatch()
	cf.addRequest(crtp.ParamGetInfoRequest{}, 1)
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("param TOC info: %w", err)
	}
	info, err := crtp.ParseParamGetInfoResponse(cf.result(0))
	if err != nil {
		return fmt.Errorf("param TOC info: %w", err)
	}
	n := int(info.NumParams)
	cf.logger.Info("Crazyflie %s: param TOC has %d entries", cf.addr, n)

	cf.startBatch()
	for i := 0; i < n; i++ {
		cf.addRequest(crtp.ParamGetItemRequest{ID: uint8(i)}, 2)
		cf.addRequest(crtp.ParamReadRequest{ID: uint8(i)}, 1)
	}
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("param TOC items: %w", err)
	}

	entries := make([]ParamTOCEntry, n)
	values := make(map[uint8]crtp.ParamValue, n)
	for i := 0; i < n; i++ {
		item, err := crtp.ParseParamGetItemResponse(cf.result(2*i + 0))
		if err != nil {
			return fmt.Errorf("param TOC item %d: %w", i, err)
		}
		entries[i] = ParamTOCEntry{
			ID:       uint8(i),
			Type:     item.Type,
			ReadOnly: item.ReadOnly,
			Group:    item.Group,
			Name:     item.Name,
		}

		raw, err := crtp.ParseParamValueResponse(cf.result(2*i + 1))
		if err != nil {
			return fmt.Errorf("param value %d: %w", i, err)
		}
		value, err := crtp.DecodeParamValue(item.Type, raw.Value)
		if err != nil {
			return fmt.Errorf("param value %d: %w", i, err)
		}
		values[uint8(i)] = value
	}
	cf.paramTOC = entries
	cf.paramValues = values
	return nil
}

// ParamTOC returns the discovered parameter TOC.
func (cf *Crazyflie) ParamTOC() []ParamTOCEntry {
	return cf.paramTOC
}

// ParamTOCEntryByName looks up a parameter by group and name.
func (cf *Crazyflie) ParamTOCEntryByName(group, name string) (ParamTOCEntry, bool) {
	for _, entry := range cf.paramTOC {
		if entry.Group == group && entry.Name == name {
			return entry, true
		}
	}
	return ParamTOCEntry{}, false
}

// Param returns the cached value of a parameter. The cache is authoritative:
// it reflects discovery reads and successful writes only.
func (cf *Crazyflie) Param(id uint8) (crtp.ParamValue, bool) {
	v, ok := cf.paramValues[id]
	return v, ok
}

// SetParam writes a parameter. The value's type is determined by the TOC
// entry, not by the caller; the local cache is only updated after the write
// is acknowledged.
func (cf *Crazyflie) SetParam(ctx context.Context, id uint8, value crtp.ParamValue) error {
	var entry *ParamTOCEntry
	for i := range cf.paramTOC {
		if cf.paramTOC[i].ID == id {
			entry = &cf.paramTOC[i]
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("%w: id %d", ErrUnknownParameter, id)
	}

	value.Type = entry.Type

	cf.startBatch()
	cf.addRequest(crtp.ParamWriteRequest{ID: id, Value: value}, 1)
	if err := cf.runBatch(ctx); err != nil {
		return fmt.Errorf("param write %d: %w", id, err)
	}

	cf.paramValues[id] = value
	return nil
}

// SetParamFloat writes a parameter from a float64, converting to the TOC
// type of the parameter.
func (cf *Crazyflie) SetParamFloat(ctx context.Context, id uint8, v float64) error {
	var entry *ParamTOCEntry
	for i := range cf.paramTOC {
		if cf.paramTOC[i].ID == id {
			entry = &cf.paramTOC[i]
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("%w: id %d", ErrUnknownParameter, id)
	}

	value := crtp.ParamValue{Type: entry.Type}
	switch entry.Type {
	case crtp.ParamTypeUint8:
		value.ValueU8 = uint8(v)
	case crtp.ParamTypeInt8:
		value.ValueI8 = int8(v)
	case crtp.ParamTypeUint16:
		value.ValueU16 = uint16(v)
	case crtp.ParamTypeInt16:
		value.ValueI16 = int16(v)
	case crtp.ParamTypeUint32:
		value.ValueU32 = uint32(v)
	case crtp.ParamTypeInt32:
		value.ValueI32 = int32(v)
	case crtp.ParamTypeFloat:
		value.ValueF32 = float32(v)
	}
	return cf.SetParam(ctx, id, value)
}
