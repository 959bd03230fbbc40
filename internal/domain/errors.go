package domain

import "errors"

var (
	ErrInputDirMissing     = errors.New("input directory does not exist")
	ErrNoDocuments         = errors.New("no PDF documents found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
)
