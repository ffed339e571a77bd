package models

// Format describes what kind of media a file (and by extension a series)
// holds. Series never mix formats; the grouper treats format as part of the
// grouping key.
const (
	FormatUnknown = "unknown"
	FormatArchive = "archive"
	FormatImage   = "image"
	FormatEpub    = "epub"
	FormatPdf     = "pdf"
)
