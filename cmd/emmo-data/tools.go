package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"emmo-data/internal/common/database"
	"emmo-data/internal/repository"
	"emmo-data/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		// openDB 已执行迁移
		db, err := openDB(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer database.Close(db)
		fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [drives|parts] FILE",
	Short: "Import drives or parts from a CSV or XLSX file",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export records",
	Short: "Export maintenance records to XLSX",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	importCmd.Flags().String("actor", service.AnonymousActor, "Actor recorded on part attachments")

	exportCmd.Flags().StringP("out", "o", "maintenance-records.xlsx", "Output file")
	exportCmd.Flags().String("drive", "", "Only records linked to this drive id")
	exportCmd.Flags().String("status", "", "Only records with this status")
	exportCmd.Flags().String("priority", "", "Only records with this priority")
}

func runImport(cmd *cobra.Command, args []string) error {
	entity, path := args[0], args[1]
	if entity != "drives" && entity != "parts" {
		return fmt.Errorf("unknown import entity %q (want drives or parts)", entity)
	}
	format, err := service.DetectImportFormat(filepath.Base(path))
	if err != nil {
		return err
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDB(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	imports := service.NewImportService(
		repository.NewSQLDrivesRepository(db),
		repository.NewSQLPartsRepository(db),
		nil,
		log,
	)

	var result *service.ImportResult
	if entity == "drives" {
		result, err = imports.ImportDrives(cmd.Context(), f, format)
	} else {
		actor, _ := cmd.Flags().GetString("actor")
		result, err = imports.ImportParts(cmd.Context(), f, format, actor)
	}
	if err != nil {
		return err
	}

	log.Info("Import finished",
		zap.String("entity", entity),
		zap.String("file", path),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runExport(cmd *cobra.Command, args []string) error {
	if args[0] != "records" {
		return fmt.Errorf("unknown export entity %q (want records)", args[0])
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDB(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	req := service.ExportRecordsRequest{}
	req.DriveID, _ = cmd.Flags().GetString("drive")
	req.Status, _ = cmd.Flags().GetString("status")
	req.Priority, _ = cmd.Flags().GetString("priority")

	exports := service.NewExportService(
		repository.NewSQLMaintenanceRecordsRepository(db, log),
		repository.NewSQLDrivesRepository(db),
		repository.NewSQLPartsRepository(db),
		log,
	)
	data, err := exports.ExportRecords(cmd.Context(), req)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	log.Info("Export written", zap.String("file", out), zap.Int("bytes", len(data)))
	return nil
}
