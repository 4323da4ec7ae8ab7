package models

import (
	"log"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&CompanyPrincipal{}, &Employer{}, &Facility{}, &Clinic{},
		&Exam{}, &ExamType{}, &Status{},
		&ExamRequest{},
		&SyncRun{}, &SyncRunError{},
	)
	if err != nil {
		log.Fatal(err)
	}

	seedStatuses(db)
}

// seedStatuses guarantees the workflow states the tag logic depends on.
// Extra statuses are managed by operators directly.
func seedStatuses(db *gorm.DB) {
	defaults := []Status{
		{ID: StatusPendingID, Name: "Pending", FinalizesProcess: false},
		{ID: StatusReceivedID, Name: "Received", FinalizesProcess: true},
	}
	for _, status := range defaults {
		if err := db.Where("id = ?", status.ID).FirstOrCreate(&status).Error; err != nil {
			log.Printf("failed to seed status %d: %v", status.ID, err)
		}
	}
}
