package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LogsBaseDir returns the base log directory, creating it if needed.
func LogsBaseDir() string {
	dir := Config("LOG_DIR", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	return dir
}

func SetupLogfile() {
	logDir := LogsBaseDir()

	// Nama file per tahun-bulan-minggu supaya rotasi sederhana tanpa tooling
	currentTime := time.Now()
	year, month, _ := currentTime.Date()
	_, week := currentTime.ISOWeek()

	logFilename := filepath.Join(logDir,
		fmt.Sprintf("payments-%d-%02d-week%d.log", year, month, week))

	logFile, err := os.OpenFile(logFilename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		fmt.Printf("Failed to open log file: %v\n", err)
		os.Exit(1)
	}

	// MultiWriter untuk stdout & file log
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Println("Logging initialized")
}
