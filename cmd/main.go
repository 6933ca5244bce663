// FilePath: cmd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	"github.com/itsatony/edgerelay/internal/config"
	"github.com/itsatony/edgerelay/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting EdgeRelay v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"    ______    __           ____       __           ",
		"   / ____/___/ /___ ____  / __ \\___  / /___ ___  __",
		"  / __/ / __  / __ `/ _ \\/ /_/ / _ \\/ / __ `/ / / /",
		" / /___/ /_/ / /_/ /  __/ _, _/  __/ / /_/ / /_/ / ",
		"/_____/\\__,_/\\__, /\\___/_/ |_|\\___/_/\\__,_/\\__, /  ",
		"            /____/                        /____/   ",
		"..................................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
