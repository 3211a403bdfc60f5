package resource

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Config is the typed view of a resource's Fields. Every ServiceKind maps to
// exactly one implementation; see newConfig.
type Config interface {
	Kind() ServiceKind
	isConfig()
}

// Credential variant keys shared by every AWS-backed service.
const (
	FieldCredentialType    = "type"
	FieldAccessKeyID       = "access_key_id"
	FieldSecretAccessKey   = "secret_access_key"
	FieldConfigFilePath    = "config_file_path"
	FieldConfigFileProfile = "config_file_profile"
	FieldConfigFileContent = "config_file_content"

	// FieldCondaConfig holds the serialized Conda sub-resource on the
	// default compute resource.
	FieldCondaConfig = "conda_config_serialized"
)

// AWSCredentials is squashed into every config that authenticates against AWS.
type AWSCredentials struct {
	Type              string `mapstructure:"type,omitempty"`
	AccessKeyID       string `mapstructure:"access_key_id,omitempty"`
	SecretAccessKey   string `mapstructure:"secret_access_key,omitempty"`
	ConfigFilePath    string `mapstructure:"config_file_path,omitempty"`
	ConfigFileProfile string `mapstructure:"config_file_profile,omitempty"`
	ConfigFileContent string `mapstructure:"config_file_content,omitempty"`
}

// SQLConfig covers the host/port relational databases.
type SQLConfig struct {
	kind     ServiceKind
	Host     string `mapstructure:"host,omitempty"`
	Port     int    `mapstructure:"port,omitempty"`
	Database string `mapstructure:"database,omitempty"`
	Username string `mapstructure:"username,omitempty"`
	Password string `mapstructure:"password,omitempty"`
}

type SnowflakeConfig struct {
	AccountIdentifier string `mapstructure:"account_identifier,omitempty"`
	Warehouse         string `mapstructure:"warehouse,omitempty"`
	Database          string `mapstructure:"database,omitempty"`
	Schema            string `mapstructure:"schema,omitempty"`
	Username          string `mapstructure:"username,omitempty"`
	Password          string `mapstructure:"password,omitempty"`
	Role              string `mapstructure:"role,omitempty"`
}

type BigQueryConfig struct {
	ProjectID                 string `mapstructure:"project_id,omitempty"`
	ServiceAccountCredentials string `mapstructure:"service_account_credentials,omitempty"`
}

type SQLiteConfig struct {
	Database string `mapstructure:"database,omitempty"`
}

type MongoDBConfig struct {
	AuthURI  string `mapstructure:"auth_uri,omitempty"`
	Database string `mapstructure:"database,omitempty"`
}

type AthenaConfig struct {
	AWSCredentials `mapstructure:",squash"`
	Region         string `mapstructure:"region,omitempty"`
	Database       string `mapstructure:"database,omitempty"`
	OutputLocation string `mapstructure:"output_location,omitempty"`
}

type DemoConfig struct{}

type S3Config struct {
	AWSCredentials `mapstructure:",squash"`
	Bucket         string `mapstructure:"bucket,omitempty"`
	Region         string `mapstructure:"region,omitempty"`
	RootDir        string `mapstructure:"root_dir,omitempty"`
	UseAsStorage   bool   `mapstructure:"use_as_storage,omitempty"`
}

type GCSConfig struct {
	Bucket                    string `mapstructure:"bucket,omitempty"`
	ServiceAccountCredentials string `mapstructure:"service_account_credentials,omitempty"`
	UseAsStorage              bool   `mapstructure:"use_as_storage,omitempty"`
}

type FilesystemConfig struct {
	Directory string `mapstructure:"directory,omitempty"`
}

type AirflowConfig struct {
	Host              string `mapstructure:"host,omitempty"`
	Username          string `mapstructure:"username,omitempty"`
	Password          string `mapstructure:"password,omitempty"`
	S3CredentialsPath string `mapstructure:"s3_credentials_path,omitempty"`
}

type KubernetesConfig struct {
	AWSCredentials            `mapstructure:",squash"`
	ClusterMode               string `mapstructure:"cluster_mode,omitempty"`
	ClusterSource             string `mapstructure:"cluster_source,omitempty"`
	KubeconfigPath            string `mapstructure:"kubeconfig_path,omitempty"`
	ClusterName               string `mapstructure:"cluster_name,omitempty"`
	CloudProvider             string `mapstructure:"cloud_provider,omitempty"`
	Region                    string `mapstructure:"region,omitempty"`
	ProjectID                 string `mapstructure:"project_id,omitempty"`
	ServiceAccountCredentials string `mapstructure:"service_account_credentials,omitempty"`
}

type LambdaConfig struct {
	RoleARN string `mapstructure:"role_arn,omitempty"`
}

type DatabricksConfig struct {
	WorkspaceURL         string `mapstructure:"workspace_url,omitempty"`
	AccessToken          string `mapstructure:"access_token,omitempty"`
	S3InstanceProfileARN string `mapstructure:"s3_instance_profile_arn,omitempty"`
	InstancePoolID       string `mapstructure:"instance_pool_id,omitempty"`
}

type SparkConfig struct {
	LivyServerURL     string `mapstructure:"livy_server_url,omitempty"`
	GlobalEnvironment string `mapstructure:"global_environment,omitempty"`
}

type CondaConfig struct{}

// DefaultComputeConfig is the built-in compute resource's config.
type DefaultComputeConfig struct {
	CondaConfigSerialized string `mapstructure:"conda_config_serialized,omitempty"`
}

type AWSConfig struct {
	AWSCredentials `mapstructure:",squash"`
	Region         string `mapstructure:"region,omitempty"`
}

type GCPConfig struct {
	ProjectID                 string `mapstructure:"project_id,omitempty"`
	ServiceAccountCredentials string `mapstructure:"service_account_credentials,omitempty"`
}

type AzureConfig struct {
	TenantID       string `mapstructure:"tenant_id,omitempty"`
	ClientID       string `mapstructure:"client_id,omitempty"`
	ClientSecret   string `mapstructure:"client_secret,omitempty"`
	SubscriptionID string `mapstructure:"subscription_id,omitempty"`
}

type ECRConfig struct {
	AWSCredentials `mapstructure:",squash"`
	Region         string `mapstructure:"region,omitempty"`
}

type GARConfig struct {
	ServiceAccountCredentials string `mapstructure:"service_account_credentials,omitempty"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host,omitempty"`
	Port     int    `mapstructure:"port,omitempty"`
	User     string `mapstructure:"user,omitempty"`
	Password string `mapstructure:"password,omitempty"`
	Targets  string `mapstructure:"targets,omitempty"`
	Level    string `mapstructure:"level,omitempty"`
	Enabled  bool   `mapstructure:"enabled,omitempty"`
}

type SlackConfig struct {
	Token    string `mapstructure:"token,omitempty"`
	Channels string `mapstructure:"channels,omitempty"`
	Level    string `mapstructure:"level,omitempty"`
	Enabled  bool   `mapstructure:"enabled,omitempty"`
}

func (c *SQLConfig) Kind() ServiceKind          { return c.kind }
func (*SnowflakeConfig) Kind() ServiceKind      { return KindSnowflake }
func (*BigQueryConfig) Kind() ServiceKind       { return KindBigQuery }
func (*SQLiteConfig) Kind() ServiceKind         { return KindSQLite }
func (*MongoDBConfig) Kind() ServiceKind        { return KindMongoDB }
func (*AthenaConfig) Kind() ServiceKind         { return KindAthena }
func (*DemoConfig) Kind() ServiceKind           { return KindDemo }
func (*S3Config) Kind() ServiceKind             { return KindS3 }
func (*GCSConfig) Kind() ServiceKind            { return KindGCS }
func (*FilesystemConfig) Kind() ServiceKind     { return KindFilesystem }
func (*AirflowConfig) Kind() ServiceKind        { return KindAirflow }
func (*KubernetesConfig) Kind() ServiceKind     { return KindKubernetes }
func (*LambdaConfig) Kind() ServiceKind         { return KindLambda }
func (*DatabricksConfig) Kind() ServiceKind     { return KindDatabricks }
func (*SparkConfig) Kind() ServiceKind          { return KindSpark }
func (*CondaConfig) Kind() ServiceKind          { return KindConda }
func (*DefaultComputeConfig) Kind() ServiceKind { return KindServer }
func (*AWSConfig) Kind() ServiceKind            { return KindAWS }
func (*GCPConfig) Kind() ServiceKind            { return KindGCP }
func (*AzureConfig) Kind() ServiceKind          { return KindAzure }
func (*ECRConfig) Kind() ServiceKind            { return KindECR }
func (*GARConfig) Kind() ServiceKind            { return KindGAR }
func (*EmailConfig) Kind() ServiceKind          { return KindEmail }
func (*SlackConfig) Kind() ServiceKind          { return KindSlack }

func (*SQLConfig) isConfig()            {}
func (*SnowflakeConfig) isConfig()      {}
func (*BigQueryConfig) isConfig()       {}
func (*SQLiteConfig) isConfig()         {}
func (*MongoDBConfig) isConfig()        {}
func (*AthenaConfig) isConfig()         {}
func (*DemoConfig) isConfig()           {}
func (*S3Config) isConfig()             {}
func (*GCSConfig) isConfig()            {}
func (*FilesystemConfig) isConfig()     {}
func (*AirflowConfig) isConfig()        {}
func (*KubernetesConfig) isConfig()     {}
func (*LambdaConfig) isConfig()         {}
func (*DatabricksConfig) isConfig()     {}
func (*SparkConfig) isConfig()          {}
func (*CondaConfig) isConfig()          {}
func (*DefaultComputeConfig) isConfig() {}
func (*AWSConfig) isConfig()            {}
func (*GCPConfig) isConfig()            {}
func (*AzureConfig) isConfig()          {}
func (*ECRConfig) isConfig()            {}
func (*GARConfig) isConfig()            {}
func (*EmailConfig) isConfig()          {}
func (*SlackConfig) isConfig()          {}

// newConfig returns the zero config for kind. Adding a ServiceKind without a
// case here panics on first use.
func newConfig(kind ServiceKind) Config {
	switch kind {
	case KindPostgres, KindMySQL, KindMariaDB, KindRedshift:
		return &SQLConfig{kind: kind}
	case KindSnowflake:
		return &SnowflakeConfig{}
	case KindBigQuery:
		return &BigQueryConfig{}
	case KindSQLite:
		return &SQLiteConfig{}
	case KindMongoDB:
		return &MongoDBConfig{}
	case KindAthena:
		return &AthenaConfig{}
	case KindDemo:
		return &DemoConfig{}
	case KindS3:
		return &S3Config{}
	case KindGCS:
		return &GCSConfig{}
	case KindFilesystem:
		return &FilesystemConfig{}
	case KindAirflow:
		return &AirflowConfig{}
	case KindKubernetes:
		return &KubernetesConfig{}
	case KindLambda:
		return &LambdaConfig{}
	case KindDatabricks:
		return &DatabricksConfig{}
	case KindSpark:
		return &SparkConfig{}
	case KindConda:
		return &CondaConfig{}
	case KindServer:
		return &DefaultComputeConfig{}
	case KindAWS:
		return &AWSConfig{}
	case KindGCP:
		return &GCPConfig{}
	case KindAzure:
		return &AzureConfig{}
	case KindECR:
		return &ECRConfig{}
	case KindGAR:
		return &GARConfig{}
	case KindEmail:
		return &EmailConfig{}
	case KindSlack:
		return &SlackConfig{}
	default:
		panic(fmt.Sprintf("resource: no config type for service kind %q", kind))
	}
}

// DecodeConfig interprets fields as the typed config of kind. Unknown keys
// are ignored; values that cannot be converted (a non-numeric port, say)
// are an error.
func DecodeConfig(kind ServiceKind, fields Fields) (Config, error) {
	cfg := newConfig(kind)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]string(fields)); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", kind, err)
	}
	return cfg, nil
}

// StorageFor translates a storage-capable config into the shape the server
// reports as its metadata store. ok is false for every other kind.
func StorageFor(cfg Config) (sc StorageConfig, ok bool) {
	switch c := cfg.(type) {
	case *S3Config:
		return StorageConfig{
			Type: StorageS3,
			S3:   &S3Storage{Bucket: c.Bucket, Region: c.Region, RootDir: c.RootDir},
		}, true
	case *GCSConfig:
		return StorageConfig{Type: StorageGCS, GCS: &GCSStorage{Bucket: c.Bucket}}, true
	case *FilesystemConfig:
		return StorageConfig{Type: StorageFile, File: &FileStorage{Directory: c.Directory}}, true
	}
	return StorageConfig{}, false
}

// SortedKeys returns the keys of f in lexical order.
func (f Fields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
