package models

import (
	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&Entity{}, &Owner{}, &OwnerRoleTag{},
		&Structure{}, &OwnershipEdge{},
		&CompatibilityRule{},
		&BeneficiaryEdge{},
		&DeadlineAlert{},
		&OwnershipEventRecord{},
	)
	utils.ErrorPanic(err)
}
