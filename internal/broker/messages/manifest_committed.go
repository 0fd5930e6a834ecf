package messages

import "time"

// ManifestCommitted публикуется после успешного commit-батча, чтобы
// потребители (кэш резолвера и т.п.) узнали об изменившихся записях.
type ManifestCommitted struct {
	FileName        string    `json:"file_name"`
	TrackingNumbers []string  `json:"tracking_numbers"`
	Inserted        int       `json:"inserted"`
	Updated         int       `json:"updated"`
	Skipped         int       `json:"skipped"`
	CommittedAt     time.Time `json:"committed_at"`
}
