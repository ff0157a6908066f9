package agent

import (
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
)

// SystemInfo is the disk and privilege summary served on /api/system/info.
type SystemInfo struct {
	TotalSpaceGB float64 `json:"totalSpaceGB"`
	FreeSpaceGB  float64 `json:"freeSpaceGB"`
	TempPath     string  `json:"tempPath"`
	IsAdmin      bool    `json:"isAdmin"`
}

// ReadSystemInfo reports the space on the system volume and where packages are downloaded.
func ReadSystemInfo(tempPath string) (SystemInfo, error) {
	info := SystemInfo{TempPath: tempPath, IsAdmin: isAdmin()}

	usage, err := disk.Usage(systemRoot())
	if err != nil {
		return info, err
	}
	info.TotalSpaceGB = toGB(usage.Total)
	info.FreeSpaceGB = toGB(usage.Free)
	return info, nil
}

func systemRoot() string {
	if runtime.GOOS == "windows" {
		if drive := os.Getenv("SystemDrive"); drive != "" {
			return drive + string(filepath.Separator)
		}
		return `C:\`
	}
	return "/"
}

func toGB(b uint64) float64 {
	return math.Round(float64(b)/(1<<30)*100) / 100
}
