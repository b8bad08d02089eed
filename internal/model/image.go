package model

import "time"

// Image describes a promoted observation photo on disk.
type Image struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}
