package config

// FileConfig represents the raw zkdeploy.toml file contents.
// All fields are pointers to distinguish "not set" from "set to zero/false".
type FileConfig struct {
	Wallet       FileWalletConfig       `toml:"wallet"`
	Chain        FileChainConfig        `toml:"chain"`
	Deploy       FileDeployConfig       `toml:"deploy"`
	Spend        FileSpendConfig        `toml:"spend"`
	Confirmation FileConfirmationConfig `toml:"confirmation"`
	Log          FileLogConfig          `toml:"log"`
}

type FileWalletConfig struct {
	KeyFile *string `toml:"key_file"`
}

type FileChainConfig struct {
	Network *string `toml:"network"`
	DataDir *string `toml:"data_dir"`
}

type FileDeployConfig struct {
	LockLovelace *uint64 `toml:"lock_lovelace"`
}

type FileSpendConfig struct {
	RetryCollateral *bool                `toml:"retry_collateral"`
	MaxAttempts     *int                 `toml:"max_attempts"`
	Budget          *FileExecutionBudget `toml:"budget"`
}

// FileExecutionBudget is the [spend.budget] table.
type FileExecutionBudget struct {
	Mem   uint64 `toml:"mem"`
	Steps uint64 `toml:"steps"`
}

// FileConfirmationConfig uses a string for the interval since TOML cannot
// decode directly to time.Duration.
type FileConfirmationConfig struct {
	Policy       *string `toml:"policy"`
	PollInterval *string `toml:"poll_interval"`
}

type FileLogConfig struct {
	Level *string `toml:"level"`
}
