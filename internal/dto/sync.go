package dto

import portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"

// ListFilesResponse lists the workbooks in the remote data directory.
type ListFilesResponse struct {
	Driver string                 `json:"driver"`
	Files  []portsrepo.RemoteFile `json:"files"`
}

// PingResponse reports remote connectivity.
type PingResponse struct {
	Driver string `json:"driver"`
	Status string `json:"status"`
}
