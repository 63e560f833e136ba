package boot

import (
	"log"
	"time"

	"pups/src/common"
	"pups/src/db"
	"pups/src/lib"
	"pups/src/models"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Reservation{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitSweep schedules the recurring expiry sweep and starts the scheduler.
func InitSweep(sw *common.Sweeper, every time.Duration) {
	id, err := lib.CreateCronJob(func() {
		if _, err := sw.Run(); err != nil {
			log.Printf("[sweep] scheduled run failed: %s\n", err.Error())
		}
	}, every)
	if err != nil {
		log.Printf("Error creating sweep job: %s\n", err.Error())
		return
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	log.Printf("Sweep job scheduled every %s: %s\n", every, *id)
	sched.Start()
}
