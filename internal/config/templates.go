package config

import (
	"fmt"
	"os"
)

// WriteTemplate drops a starter node configuration at path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(nodeTemplate), 0o600)
}

const nodeTemplate = `group = "mygroupacct1"
addr = ":9200"
data_path = "daclify.db"
cors_origins = ["http://localhost:3000"]

[auth]
jwt_secret = "change-me"
admin_token = ""

[sidecar]
hub_url = ""
hooks_url = ""
token_url = ""
payroll_url = ""

[[hooks]]
operation = "propose"
hook_action = "onpropose"
enabled = true
`
