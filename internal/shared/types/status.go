package types

// Version is reported by / and /server_info
const Version = "1.0.0"

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is returned when a request fails before an action runs
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// AliveResponse is the body of /alive
type AliveResponse struct {
	Status            string `json:"status"`
	BashSessionActive bool   `json:"bash_session_active"`
}

// ServerInfo is the body of /server_info
type ServerInfo struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Cwd       string      `json:"cwd"`
	Username  string      `json:"username"`
	Resources interface{} `json:"resources"`
}

// StatsResponse is the body of /system/stats
type StatsResponse struct {
	Status      string      `json:"status"`
	SystemStats interface{} `json:"system_stats"`
	Counters    interface{} `json:"counters,omitempty"`
	Timestamp   float64     `json:"timestamp"`
}
