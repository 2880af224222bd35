package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/pkg/logger"
)

type strayRow struct {
	ID        uint
	ProjectID uint
	Username  string
	Role      string
}

// Removes project_members rows that name the project's own owner.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	dryRun := flag.Bool("dry-run", false, "list the rows without deleting them")
	flag.Parse()

	logger.Init("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	var rows []strayRow
	err = db.Table("project_members AS pm").
		Select("pm.id, pm.project_id, pm.username, pm.role").
		Joins("JOIN projects p ON p.id = pm.project_id").
		Where("pm.username = p.owner_id").
		Order("pm.project_id").
		Scan(&rows).Error
	if err != nil {
		logger.Fatalf("Failed to query memberships: %v", err)
	}

	fmt.Printf("%-8s %-10s %-30s %-10s\n", "ID", "Project", "Username", "Role")
	fmt.Println("------------------------------------------------------------")
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		fmt.Printf("%-8d %-10d %-30s %-10s\n", r.ID, r.ProjectID, r.Username, r.Role)
		ids = append(ids, r.ID)
	}
	fmt.Println("")

	if len(ids) == 0 {
		logger.Infof("No owner membership rows found")
		return
	}
	if *dryRun {
		logger.Infof("Dry run: %d rows would be deleted", len(ids))
		return
	}

	result := db.Where("id IN ?", ids).Delete(&models.ProjectMember{})
	if result.Error != nil {
		logger.Fatalf("Failed to delete memberships: %v", result.Error)
	}
	logger.Infof("Deleted %d owner membership rows", result.RowsAffected)
}
