package resource

import (
	"strings"

	"github.com/pratik-mahalle/resourcectl/internal/pkg/errors"
)

// ServiceKind is the closed set of external systems a Resource can represent.
type ServiceKind string

const (
	KindPostgres   ServiceKind = "Postgres"
	KindMySQL      ServiceKind = "MySQL"
	KindMariaDB    ServiceKind = "MariaDB"
	KindRedshift   ServiceKind = "Redshift"
	KindSnowflake  ServiceKind = "Snowflake"
	KindBigQuery   ServiceKind = "BigQuery"
	KindSQLite     ServiceKind = "SQLite"
	KindMongoDB    ServiceKind = "MongoDB"
	KindAthena     ServiceKind = "Athena"
	KindDemo       ServiceKind = "Demo"
	KindS3         ServiceKind = "S3"
	KindGCS        ServiceKind = "GCS"
	KindFilesystem ServiceKind = "Filesystem"

	KindAirflow    ServiceKind = "Airflow"
	KindKubernetes ServiceKind = "Kubernetes"
	KindLambda     ServiceKind = "Lambda"
	KindDatabricks ServiceKind = "Databricks"
	KindSpark      ServiceKind = "Spark"
	KindConda      ServiceKind = "Conda"
	KindServer     ServiceKind = "Server"

	KindAWS   ServiceKind = "AWS"
	KindGCP   ServiceKind = "GCP"
	KindAzure ServiceKind = "Azure"

	KindECR ServiceKind = "ECR"
	KindGAR ServiceKind = "GAR"

	KindEmail ServiceKind = "Email"
	KindSlack ServiceKind = "Slack"
)

// AllKinds lists every ServiceKind in display order.
var AllKinds = []ServiceKind{
	KindPostgres, KindMySQL, KindMariaDB, KindRedshift, KindSnowflake,
	KindBigQuery, KindSQLite, KindMongoDB, KindAthena, KindDemo,
	KindS3, KindGCS, KindFilesystem,
	KindAirflow, KindKubernetes, KindLambda, KindDatabricks, KindSpark,
	KindConda, KindServer,
	KindAWS, KindGCP, KindAzure,
	KindECR, KindGAR,
	KindEmail, KindSlack,
}

// Category groups service kinds by what they provide.
type Category string

const (
	CategoryData              Category = "data"
	CategoryCompute           Category = "compute"
	CategoryCloud             Category = "cloud"
	CategoryContainerRegistry Category = "container_registry"
	CategoryNotification      Category = "notification"
)

// ParseServiceKind maps a backend service string onto a ServiceKind. The
// match is case-insensitive.
func ParseServiceKind(s string) (ServiceKind, error) {
	for _, k := range AllKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", errors.UnknownService(s)
}

func (k ServiceKind) String() string {
	return string(k)
}
