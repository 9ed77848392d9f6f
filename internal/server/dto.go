package server

import "gallery/internal/domain"

type UploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type CheckFeaturesResponse struct {
	Exists bool `json:"exists"`
}

type SearchResponse struct {
	Results []domain.Match `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
