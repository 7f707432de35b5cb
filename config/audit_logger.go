package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry is one reconciliation decision or side effect, written as a
// JSON line to the per-source audit log file.
type AuditEntry struct {
	Level           string                 `json:"level"`
	Message         string                 `json:"message"`
	Timestamp       string                 `json:"timestamp"`
	Source          string                 `json:"source"`
	TransactionCode string                 `json:"transaction_code,omitempty"`
	GatewayOrderID  string                 `json:"gateway_order_id,omitempty"`
	ObservedStatus  string                 `json:"observed_status,omitempty"`
	ResultStatus    string                 `json:"result_status,omitempty"`
	Decision        string                 `json:"decision,omitempty"`
	Reason          string                 `json:"reason,omitempty"`
	Override        bool                   `json:"override,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
}

type auditLogger struct {
	source   string
	logger   *log.Logger
	logFile  *os.File
	logChan  chan AuditEntry
	stopChan chan bool
	wg       sync.WaitGroup
}

// AuditLoggerManager manages one async logger per reconciliation source.
type AuditLoggerManager struct {
	loggers map[string]*auditLogger
	mu      sync.RWMutex
}

var AuditManager *AuditLoggerManager

// Reconciliation source constants. Dispatcher and gateway get their own
// files even though they are not Apply sources.
const (
	AUDIT_WEBHOOK    = "webhook"
	AUDIT_POLL       = "poll"
	AUDIT_MANUAL     = "manual"
	AUDIT_DISPATCHER = "dispatcher"
	AUDIT_GATEWAY    = "gateway"
)

// InitAuditLoggers initializes the per-source reconciliation loggers.
func InitAuditLoggers() error {
	AuditManager = &AuditLoggerManager{
		loggers: make(map[string]*auditLogger),
	}

	sources := []string{
		AUDIT_WEBHOOK, AUDIT_POLL, AUDIT_MANUAL, AUDIT_DISPATCHER, AUDIT_GATEWAY,
	}

	for _, source := range sources {
		if err := AuditManager.createLogger(source); err != nil {
			return fmt.Errorf("failed to create audit logger for %s: %w", source, err)
		}
	}

	return nil
}

func (m *AuditLoggerManager) createLogger(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logDir := filepath.Join(LogsBaseDir(), "reconcile")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	currentTime := time.Now()
	year, month, _ := currentTime.Date()
	_, week := currentTime.ISOWeek()

	logFileName := fmt.Sprintf("reconcile-%d-%02d-week%d-%s.log", year, month, week, source)
	logFilePath := filepath.Join(logDir, logFileName)

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	al := &auditLogger{
		source:   source,
		logger:   log.New(logFile, "", 0),
		logFile:  logFile,
		logChan:  make(chan AuditEntry, 1000),
		stopChan: make(chan bool),
	}

	al.wg.Add(1)
	go al.worker()

	m.loggers[source] = al
	return nil
}

func (al *auditLogger) worker() {
	defer al.wg.Done()

	for {
		select {
		case entry := <-al.logChan:
			al.writeLog(entry)
		case <-al.stopChan:
			// Sisa entri diproses dulu sebelum berhenti
			for len(al.logChan) > 0 {
				entry := <-al.logChan
				al.writeLog(entry)
			}
			return
		}
	}
}

func (al *auditLogger) writeLog(entry AuditEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error marshaling audit entry for %s: %v", al.source, err)
		return
	}

	al.logger.Println(string(jsonData))
}

// Log queues an audit entry for the given source without blocking the caller.
func (m *AuditLoggerManager) Log(source, level, message string, entry AuditEntry) {
	m.mu.RLock()
	al, exists := m.loggers[source]
	m.mu.RUnlock()

	if !exists {
		log.Printf("WARN: audit logger for %s not found", source)
		return
	}

	entry.Level = level
	entry.Message = message
	entry.Source = source
	entry.Timestamp = time.Now().Format(time.RFC3339)

	select {
	case al.logChan <- entry:
	default:
		log.Printf("ERROR: audit logger channel full for %s", source)
	}
}

func AuditInfo(source, message string, entry AuditEntry) {
	if AuditManager == nil {
		return
	}
	AuditManager.Log(source, "INFO", message, entry)
}

func AuditWarn(source, message string, entry AuditEntry) {
	if AuditManager == nil {
		return
	}
	AuditManager.Log(source, "WARN", message, entry)
}

func AuditError(source, message string, entry AuditEntry) {
	if AuditManager == nil {
		return
	}
	AuditManager.Log(source, "ERROR", message, entry)
}

// ShutdownAuditLoggers drains and closes every audit logger.
func ShutdownAuditLoggers() {
	if AuditManager == nil {
		return
	}

	AuditManager.mu.Lock()
	defer AuditManager.mu.Unlock()

	for _, al := range AuditManager.loggers {
		close(al.stopChan)
		al.wg.Wait()
		al.logFile.Close()
	}

	log.Println("Audit loggers shutdown completed")
}
