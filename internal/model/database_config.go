package model

// DBType constants
const (
	DBTypeMySQL      = "mysql"
	DBTypePostgreSQL = "postgresql"
)

// DatabaseConfig records one database provisioned for an application. An
// application may provision more than one database over time; (application_id,
// db_name) is unique within the application.
type DatabaseConfig struct {
	BaseModel
	ApplicationID int    `gorm:"uniqueIndex:uk_app_db,priority:1;not null" json:"applicationId"`
	DBType        string `gorm:"type:enum('mysql','postgresql');not null" json:"dbType"`
	DBName        string `gorm:"type:varchar(128);uniqueIndex:uk_app_db,priority:2;not null" json:"dbName"`
	DBUsername    string `gorm:"type:varchar(128);not null" json:"dbUsername"`
	DBPassword    string `gorm:"type:varchar(255)" json:"-"`
	DBPort        int    `gorm:"default:0" json:"dbPort"`
	Status        string `gorm:"type:enum('created','failed');default:'created'" json:"status"`
}

// TableName specifies the table name for DatabaseConfig model
func (DatabaseConfig) TableName() string {
	return "databases"
}
