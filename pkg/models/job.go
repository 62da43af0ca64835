package models

// CountValidation compares the records handed to the sheet writer with the rows it reported.
type CountValidation struct {
	Expected   int  `json:"expected"`
	Written    int  `json:"written"`
	Duplicates int  `json:"duplicates"`
	Match      bool `json:"match"`
}

// JobResult is returned for every processed PDF, successful or not.
type JobResult struct {
	JobID           string             `json:"job_id"`
	Success         bool               `json:"success"`
	State           string             `json:"state"`
	Supplier        string             `json:"supplier"`
	Document        string             `json:"document"`
	CoilsProcessed  int                `json:"coils_processed"`
	Data            []NormalizedRecord `json:"data,omitempty"`
	PagesProcessed  int                `json:"pages_processed"`
	PagesDropped    int                `json:"pages_dropped,omitempty"`
	FailedPages     []int              `json:"failed_pages"`
	BackupCreated   bool               `json:"backup_created"`
	BackupPath      string             `json:"backup_path,omitempty"`
	CountValidation *CountValidation   `json:"count_validation"`
	SheetRow        int                `json:"sheet_row,omitempty"`
	ErrorKind       string             `json:"error_kind,omitempty"`
	Error           string             `json:"error,omitempty"`
	Duration        string             `json:"duration"`
}
