package model

type ConsoleSession struct {
	ID        string `json:"id" db:"id"`
	Evaluator string `json:"evaluator" db:"evaluator"`
	State     string `json:"state" db:"state"`
	Error     string `json:"error" db:"error"`
	Ctime     int64  `json:"ctime" db:"ctime"`
	Mtime     int64  `json:"mtime" db:"mtime"`
}

type TranscriptEntry struct {
	SessionID string `json:"session_id" db:"session_id"`
	Seq       int64  `json:"seq" db:"seq"`
	Source    string `json:"source" db:"source"`
	Result    string `json:"result" db:"result"`
	HasResult int    `json:"has_result" db:"has_result"`
	Ctime     int64  `json:"ctime" db:"ctime"`
}
