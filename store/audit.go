// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package store

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotRevertible is returned by RevertTarget for a batch that is itself a
// revert, applied nothing or was already reverted.
var ErrNotRevertible = errors.New("batch cannot be reverted")

// AuditAction tags an audit record.
type AuditAction string

// Audit actions.
const (
	AuditApply  AuditAction = "apply"
	AuditRevert AuditAction = "revert"
)

// AuditRecord is one entry of a workbook's audit trail: the projection of a
// batch result that is needed to show what changed and to undo it.
type AuditRecord struct {
	BatchID    string               `json:"batchId"`
	Action     AuditAction          `json:"action"`
	Version    int64                `json:"version"`
	Time       time.Time            `json:"time"`
	Success    bool                 `json:"success"`
	AppliedOps int                  `json:"appliedOps"`
	Errors     []sheetops.OpError   `json:"errors"`
	Diff       []sheetops.DiffEntry `json:"diff"`
	RevertOf   string               `json:"revertOf,omitempty"`
}

// NewAuditRecord projects a batch result into an audit record.
func NewAuditRecord(res *sheetops.BatchResult) AuditRecord {
	return AuditRecord{
		BatchID:    res.BatchID,
		Action:     AuditApply,
		Version:    res.Version,
		Time:       time.Now().UTC(),
		Success:    res.Success,
		AppliedOps: res.AppliedOps,
		Errors:     res.Errors,
		Diff:       res.Diff,
	}
}

// NewRevertRecord returns the audit record of a revert of batch revertOf.
func NewRevertRecord(revertOf string) AuditRecord {
	return AuditRecord{
		BatchID:  uuid.NewString(),
		Action:   AuditRevert,
		Time:     time.Now().UTC(),
		Success:  true,
		Errors:   []sheetops.OpError{},
		Diff:     []sheetops.DiffEntry{},
		RevertOf: revertOf,
	}
}

func auditKeyPrefix(id string) []byte {
	return []byte(auditPrefix + id + "/")
}

func auditKey(id string, rec AuditRecord) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", auditPrefix, id, rec.Version, rec.BatchID))
}

// AppendAudit adds a record to the audit trail of workbook id without
// touching the workbook. Records sort by version.
func (s *Store) AppendAudit(ctx context.Context, id string, rec AuditRecord) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return writeAudit(txn, id, rec)
	})
}

func writeAudit(txn *badger.Txn, id string, rec AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	return txn.Set(auditKey(id, rec), data)
}

// Audit returns the audit trail of workbook id, oldest first.
func (s *Store) Audit(ctx context.Context, id string) ([]AuditRecord, error) {
	var records []AuditRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := auditKeyPrefix(id)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var rec AuditRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode audit record %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// FindAudit returns the record of batch batchID of workbook id.
func (s *Store) FindAudit(ctx context.Context, id, batchID string) (*AuditRecord, error) {
	records, err := s.Audit(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].BatchID == batchID {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: batch %s of %s", ErrNotFound, batchID, id)
}

// RevertTarget returns the apply record of batch batchID of workbook id if it
// can still be reverted.
func (s *Store) RevertTarget(ctx context.Context, id, batchID string) (*AuditRecord, error) {
	records, err := s.Audit(ctx, id)
	if err != nil {
		return nil, err
	}
	var target *AuditRecord
	for i := range records {
		switch {
		case records[i].BatchID == batchID:
			target = &records[i]
		case records[i].RevertOf == batchID:
			return nil, fmt.Errorf("%w: %s was reverted by %s", ErrNotRevertible, batchID, records[i].BatchID)
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: batch %s of %s", ErrNotFound, batchID, id)
	}
	if target.Action != AuditApply || target.AppliedOps == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotRevertible, batchID)
	}
	return target, nil
}
