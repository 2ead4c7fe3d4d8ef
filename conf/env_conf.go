package conf

// EnvironmentEnum deployment environment selector
type EnvironmentEnum string

const (
	LocalEnvironmentEnum   EnvironmentEnum = "loc"
	MainnetEnvironmentEnum EnvironmentEnum = "mainnet"
	TestnetEnvironmentEnum EnvironmentEnum = "testnet"
)

// SystemEnvironmentEnum current environment, set from the -env flag before InitConfig
var SystemEnvironmentEnum = MainnetEnvironmentEnum

// GetYaml returns the config file path for the current environment
func GetYaml() string {
	switch SystemEnvironmentEnum {
	case LocalEnvironmentEnum:
		return "./conf/vault_loc.yaml"
	case TestnetEnvironmentEnum:
		return "./conf/vault_testnet.yaml"
	default:
		return "./conf/vault_mainnet.yaml"
	}
}
