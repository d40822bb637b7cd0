package config

import "fmt"

// ValidationFunc validates one aspect of a Config, matching the teacher's
// table-driven validation shape.
type ValidationFunc func(*Config) error

var validationRules = []ValidationFunc{
	validateRemoteCredentials,
	validateBucket,
	validateBackupListPath,
	validateKeyFilePath,
}

// Validate runs every validation rule, returning the first failure.
func (c *Config) Validate() error {
	for _, rule := range validationRules {
		if err := rule(c); err != nil {
			return err
		}
	}
	return nil
}

func validateRemoteCredentials(c *Config) error {
	if c.RemoteKeyID == "" {
		return fmt.Errorf("config: remote_key_id is required")
	}
	if c.RemoteKey == "" {
		return fmt.Errorf("config: remote_key is required")
	}
	return nil
}

func validateBucket(c *Config) error {
	if c.Bucket == "" {
		return fmt.Errorf("config: bucket is required")
	}
	return nil
}

func validateBackupListPath(c *Config) error {
	if c.BackupListPath == "" {
		return fmt.Errorf("config: backup_list_path is required")
	}
	return nil
}

func validateKeyFilePath(c *Config) error {
	if c.EncryptionEnabled && c.KeyFilePath == "" {
		return fmt.Errorf("config: keyfile_path is required when encryption is enabled")
	}
	return nil
}
