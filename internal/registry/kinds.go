package registry

import (
	"strings"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
)

// Credential variant values.
const (
	CredentialAccessKey         = "access_key"
	CredentialConfigFilePath    = "config_file_path"
	CredentialConfigFileContent = "config_file_content"
)

// Kubernetes discriminator values.
const (
	ClusterExisting    = "existing"
	ClusterManaged     = "managed"
	SourceSameCluster  = "same_cluster"
	SourceKubeconfig   = "kubeconfig"
	CloudProviderAWS   = "aws"
	CloudProviderGCP   = "gcp"
	FieldClusterMode   = "cluster_mode"
	FieldClusterSource = "cluster_source"
	FieldCloudProvider = "cloud_provider"
)

// CredentialVariants are the mutually exclusive ways of supplying AWS
// credentials. The chosen variant is persisted under the "type" key.
var CredentialVariants = &Discriminator{
	Key:     resource.FieldCredentialType,
	Label:   "Credential type",
	Default: CredentialAccessKey,
	Options: []Option{
		{
			Value: CredentialAccessKey,
			Label: "Access keys",
			Fields: []FieldSpec{
				{Name: resource.FieldAccessKeyID, Label: "Access key ID", Required: true},
				{Name: resource.FieldSecretAccessKey, Label: "Secret access key", Required: true, Sensitive: true},
			},
		},
		{
			Value: CredentialConfigFilePath,
			Label: "Credentials file path",
			Fields: []FieldSpec{
				{Name: resource.FieldConfigFilePath, Label: "Config file path", Required: true},
				{Name: resource.FieldConfigFileProfile, Label: "Profile", Required: true},
			},
		},
		{
			Value: CredentialConfigFileContent,
			Label: "Credentials file upload",
			Fields: []FieldSpec{
				{Name: resource.FieldConfigFileContent, Label: "Config file content", Required: true, Sensitive: true},
				{Name: resource.FieldConfigFileProfile, Label: "Profile", Required: true},
			},
		},
	},
}

func sqlFields() []FieldSpec {
	return []FieldSpec{
		{Name: "host", Label: "Host", Required: true, Identity: true, Rule: "hostname_rfc1123|ip"},
		{Name: "port", Label: "Port", Required: true, Rule: "tcpport"},
		{Name: "database", Label: "Database", Required: true, Identity: true},
		{Name: "username", Label: "Username", Required: true},
		{Name: "password", Label: "Password", Required: true, Sensitive: true},
	}
}

var gcpCredentials = FieldSpec{
	Name: "service_account_credentials", Label: "Service account credentials",
	Required: true, Sensitive: true, Rule: "gcpcreds",
}

func init() {
	data := resource.CategoryData
	compute := resource.CategoryCompute

	for _, k := range []resource.ServiceKind{resource.KindPostgres, resource.KindMySQL, resource.KindMariaDB, resource.KindRedshift} {
		register(&Entry{
			Kind: k, Category: data, Activated: true, Discoverable: true,
			DocsPath: "integrations/databases/" + strings.ToLower(string(k)),
			Fields:   sqlFields(),
		})
	}

	register(&Entry{
		Kind: resource.KindSnowflake, Category: data, Activated: true, Discoverable: true,
		DocsPath: "integrations/databases/snowflake",
		Fields: []FieldSpec{
			{Name: "account_identifier", Label: "Account identifier", Required: true, Identity: true},
			{Name: "warehouse", Label: "Warehouse", Required: true},
			{Name: "database", Label: "Database", Required: true, Identity: true},
			{Name: "schema", Label: "Schema"},
			{Name: "username", Label: "Username", Required: true},
			{Name: "password", Label: "Password", Required: true, Sensitive: true},
			{Name: "role", Label: "Role"},
		},
	})

	register(&Entry{
		Kind: resource.KindBigQuery, Category: data, Activated: true, Discoverable: true,
		DocsPath: "integrations/databases/bigquery",
		Fields: []FieldSpec{
			{Name: "project_id", Label: "Project ID", Required: true, Identity: true},
			gcpCredentials,
		},
	})

	register(&Entry{
		Kind: resource.KindSQLite, Category: data, Activated: true, Discoverable: true,
		DocsPath: "integrations/databases/sqlite",
		Fields: []FieldSpec{
			{Name: "database", Label: "Database path", Required: true, Identity: true},
		},
	})

	register(&Entry{
		Kind: resource.KindMongoDB, Category: data, Activated: true, Discoverable: true,
		DocsPath: "integrations/databases/mongodb",
		Fields: []FieldSpec{
			{Name: "auth_uri", Label: "Connection URI", Required: true, Sensitive: true, Rule: "mongouri"},
			{Name: "database", Label: "Database", Required: true, Identity: true},
		},
	})

	register(&Entry{
		Kind: resource.KindAthena, Category: data, Activated: true, Discoverable: true, Credentials: true,
		DocsPath: "integrations/databases/athena",
		Fields: []FieldSpec{
			{Name: "region", Label: "Region", Required: true},
			{Name: "database", Label: "Database", Required: true, Identity: true},
			{Name: "output_location", Label: "S3 output location", Required: true, Rule: "url"},
		},
	})

	register(&Entry{
		Kind: resource.KindDemo, Category: data, Activated: true, BuiltIn: true, Discoverable: true,
		DocsPath: "integrations/demo",
	})

	register(&Entry{
		Kind: resource.KindS3, Category: data, Activated: true, Discoverable: true, StorageCapable: true, Credentials: true,
		DocsPath: "integrations/storage/s3",
		Fields: []FieldSpec{
			{Name: "bucket", Label: "Bucket", Required: true, Identity: true},
			{Name: "region", Label: "Region", Required: true},
			{Name: "root_dir", Label: "Root directory"},
			{Name: "use_as_storage", Label: "Use as metadata storage", Rule: "boolean"},
		},
	})

	register(&Entry{
		Kind: resource.KindGCS, Category: data, Activated: true, Discoverable: true, StorageCapable: true,
		DocsPath: "integrations/storage/gcs",
		Fields: []FieldSpec{
			{Name: "bucket", Label: "Bucket", Required: true, Identity: true},
			gcpCredentials,
			{Name: "use_as_storage", Label: "Use as metadata storage", Rule: "boolean"},
		},
	})

	register(&Entry{
		Kind: resource.KindFilesystem, Category: data, Activated: true, BuiltIn: true, StorageCapable: true,
		DocsPath: "integrations/storage/filesystem",
		Fields: []FieldSpec{
			{Name: "directory", Label: "Directory", Required: true, Identity: true},
		},
	})

	register(&Entry{
		Kind: resource.KindAirflow, Category: compute, Activated: true,
		DocsPath: "integrations/compute/airflow",
		Fields: []FieldSpec{
			{Name: "host", Label: "Host", Required: true, Identity: true, Rule: "url"},
			{Name: "username", Label: "Username", Required: true},
			{Name: "password", Label: "Password", Required: true, Sensitive: true},
			{Name: "s3_credentials_path", Label: "S3 credentials path"},
		},
	})

	register(&Entry{
		Kind: resource.KindKubernetes, Category: compute, Activated: true,
		DocsPath: "integrations/compute/kubernetes",
		Primary: &Discriminator{
			Key: FieldClusterMode, Label: "Cluster", Default: ClusterExisting,
			Options: []Option{
				{
					Value: ClusterExisting, Label: "Use an existing cluster",
					Secondary: &Discriminator{
						Key: FieldClusterSource, Label: "Cluster source", Default: SourceKubeconfig,
						Options: []Option{
							{Value: SourceSameCluster, Label: "The cluster this server runs in"},
							{
								Value: SourceKubeconfig, Label: "Kubeconfig",
								Fields: []FieldSpec{
									{Name: "kubeconfig_path", Label: "Kubeconfig path", Required: true},
									{Name: "cluster_name", Label: "Cluster name", Required: true, Identity: true},
								},
							},
						},
					},
				},
				{
					Value: ClusterManaged, Label: "Provision a new cluster",
					Secondary: &Discriminator{
						Key: FieldCloudProvider, Label: "Cloud provider", Default: CloudProviderAWS,
						Options: []Option{
							{
								Value: CloudProviderAWS, Label: "AWS", Credentials: true,
								Fields: []FieldSpec{
									{Name: "region", Label: "Region", Required: true},
								},
							},
							{
								Value: CloudProviderGCP, Label: "GCP",
								Fields: []FieldSpec{
									{Name: "project_id", Label: "Project ID", Required: true, Identity: true},
									{Name: "region", Label: "Region", Required: true},
									gcpCredentials,
								},
							},
						},
					},
				},
			},
		},
	})

	register(&Entry{
		Kind: resource.KindLambda, Category: compute, Activated: true,
		DocsPath: "integrations/compute/lambda",
		Fields: []FieldSpec{
			{Name: "role_arn", Label: "Execution role ARN", Required: true, Identity: true, Rule: "rolearn"},
		},
	})

	register(&Entry{
		Kind: resource.KindDatabricks, Category: compute, Activated: true,
		DocsPath: "integrations/compute/databricks",
		Fields: []FieldSpec{
			{Name: "workspace_url", Label: "Workspace URL", Required: true, Identity: true, Rule: "url"},
			{Name: "access_token", Label: "Access token", Required: true, Sensitive: true},
			{Name: "s3_instance_profile_arn", Label: "S3 instance profile ARN", Required: true},
			{Name: "instance_pool_id", Label: "Instance pool ID"},
		},
	})

	register(&Entry{
		Kind: resource.KindSpark, Category: compute, Activated: true,
		DocsPath: "integrations/compute/spark",
		Fields: []FieldSpec{
			{Name: "livy_server_url", Label: "Livy server URL", Required: true, Identity: true, Rule: "url"},
			{Name: "global_environment", Label: "Global environment"},
		},
	})

	register(&Entry{
		Kind: resource.KindConda, Category: compute, Activated: true, BuiltIn: true,
		DocsPath: "integrations/compute/conda",
	})

	register(&Entry{
		Kind: resource.KindServer, Category: compute, Activated: true, BuiltIn: true,
		DocsPath: "integrations/compute/server",
	})

	register(&Entry{
		Kind: resource.KindAWS, Category: resource.CategoryCloud, Activated: true, Credentials: true,
		DocsPath: "integrations/cloud/aws",
		Fields: []FieldSpec{
			{Name: "region", Label: "Region", Required: true},
		},
	})

	register(&Entry{
		Kind: resource.KindGCP, Category: resource.CategoryCloud,
		DocsPath: "integrations/cloud/gcp",
		Fields: []FieldSpec{
			{Name: "project_id", Label: "Project ID", Required: true, Identity: true},
			gcpCredentials,
		},
	})

	register(&Entry{
		Kind: resource.KindAzure, Category: resource.CategoryCloud,
		DocsPath: "integrations/cloud/azure",
		Fields: []FieldSpec{
			{Name: "tenant_id", Label: "Tenant ID", Required: true, Identity: true},
			{Name: "client_id", Label: "Client ID", Required: true},
			{Name: "client_secret", Label: "Client secret", Required: true, Sensitive: true},
			{Name: "subscription_id", Label: "Subscription ID", Required: true, Identity: true},
		},
	})

	register(&Entry{
		Kind: resource.KindECR, Category: resource.CategoryContainerRegistry, Activated: true, Credentials: true,
		DocsPath: "integrations/registries/ecr",
		Fields: []FieldSpec{
			{Name: "region", Label: "Region", Required: true},
		},
	})

	register(&Entry{
		Kind: resource.KindGAR, Category: resource.CategoryContainerRegistry, Activated: true,
		DocsPath: "integrations/registries/gar",
		Fields:   []FieldSpec{gcpCredentials},
	})

	register(&Entry{
		Kind: resource.KindEmail, Category: resource.CategoryNotification, Activated: true,
		DocsPath: "integrations/notifications/email",
		Fields: []FieldSpec{
			{Name: "host", Label: "SMTP host", Required: true, Identity: true, Rule: "hostname_rfc1123|ip"},
			{Name: "port", Label: "SMTP port", Required: true, Rule: "tcpport"},
			{Name: "user", Label: "Sender address", Required: true, Identity: true, Rule: "email"},
			{Name: "password", Label: "Password", Required: true, Sensitive: true},
			{Name: "targets", Label: "Receivers", Required: true, Rule: "emaillist"},
			{Name: "level", Label: "Notification level", Required: true, Rule: "oneof=success warning error"},
			{Name: "enabled", Label: "Notify on every workflow", Rule: "boolean"},
		},
	})

	register(&Entry{
		Kind: resource.KindSlack, Category: resource.CategoryNotification, Activated: true,
		DocsPath: "integrations/notifications/slack",
		Fields: []FieldSpec{
			{Name: "token", Label: "Bot token", Required: true, Sensitive: true},
			{Name: "channels", Label: "Channels", Required: true},
			{Name: "level", Label: "Notification level", Required: true, Rule: "oneof=success warning error"},
			{Name: "enabled", Label: "Notify on every workflow", Rule: "boolean"},
		},
	})
}
