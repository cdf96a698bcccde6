// Package document defines the document record shared by the metadata store
// and the warehouse.
package document

import "time"

// Status is a document's extraction lifecycle state. A document is created
// pending, moves once to success or failed, and is immutable afterwards.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Document is identified by ContentHash, the hex digest of its raw bytes
// and the global identity key across all stores.
type Document struct {
	ContentHash      string    `json:"content_hash"`
	FileName         string    `json:"file_name"`
	ByteSize         int64     `json:"byte_size"`
	ContentType      string    `json:"content_type"`
	StoragePath      string    `json:"storage_path"`
	FullText         string    `json:"full_text,omitempty"`
	ExtractionStatus Status    `json:"extraction_status"`
	JobID            string    `json:"job_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
