package middleware

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// ServerInfo muestra información del servidor al iniciar
func ServerInfo(port string, redisEnabled bool, logger *zap.Logger) {
	hostname, _ := os.Hostname()
	goVersion := runtime.Version()
	numCPU := runtime.NumCPU()
	startTime := time.Now().Format("2006-01-02 15:04:05")

	cache := "Memoria (L1)"
	if redisEnabled {
		cache = "Memoria (L1) + Redis (L2)"
	}

	fmt.Println("")
	fmt.Println("🚀 " + boldColor + "Facturación Service" + resetColor)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("📅 Started at: " + startTime)
	fmt.Println("🌐 Server URL: " + cyanColor + "http://localhost:" + port + resetColor)
	fmt.Println("💻 Hostname: " + hostname)
	fmt.Println("🔧 Go Version: " + goVersion)
	fmt.Println("⚡ CPU Cores: " + fmt.Sprintf("%d", numCPU))
	fmt.Println("")
	fmt.Println("📊 " + boldColor + "Endpoints:" + resetColor)
	fmt.Println("   GET  " + greenColor + "/facturas" + resetColor + "                    - Listado de facturas")
	fmt.Println("   GET  " + greenColor + "/facturas/nueva" + resetColor + "              - Editor de factura")
	fmt.Println("   POST " + blueColor + "/facturas/nueva/items" + resetColor + "        - Acciones del editor")
	fmt.Println("   GET  " + greenColor + "/api/v1/facturas/editor/ws" + resetColor + "  - Editor en vivo (WebSocket)")
	fmt.Println("   GET  " + greenColor + "/api/v1/catalogo" + resetColor + "            - Catálogo de precios")
	fmt.Println("")
	fmt.Println("🔍 " + boldColor + "Monitoring:" + resetColor)
	fmt.Println("   📈 Health Check: " + cyanColor + "http://localhost:" + port + "/health" + resetColor)
	fmt.Println("   📊 Métricas:     " + cyanColor + "http://localhost:" + port + "/api/v1/monitoring/metrics" + resetColor)
	fmt.Println("")
	fmt.Println("⚙️  " + boldColor + "Environment:" + resetColor)
	fmt.Println("   🗄️  Database: PostgreSQL")
	fmt.Println("   🗃️  Cache: " + cache)
	fmt.Println("   📝 Logging: Structured (Zap)")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("✨ " + boldColor + "Server is ready to handle requests!" + resetColor)
	fmt.Println("")

	logger.Info("Server started successfully",
		zap.String("port", port),
		zap.String("hostname", hostname),
		zap.String("go_version", goVersion),
		zap.Int("cpu_cores", numCPU),
		zap.Bool("redis", redisEnabled),
		zap.String("start_time", startTime),
	)
}
