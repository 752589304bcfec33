package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/wallpanels/internal/core/httpclient"
	"github.com/mohammed-shakir/wallpanels/internal/core/model"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	n, err := client.DBSize(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis dbsize: %w", err)
	}
	fmt.Println("redis keys:", n)
	return nil
}

// synthetic seamless tile: a diagonal gradient that wraps in both axes
func syntheticPattern(w, h int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * x / w),
				G: uint8(255 * y / h),
				B: uint8(255 * ((x + y) % w) / w),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generate(ctx context.Context, cli *http.Client, base, filename string, pattern []byte, layout map[string]string) (model.GenerateResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range layout {
		if err := mw.WriteField(k, v); err != nil {
			return model.GenerateResponse{}, err
		}
	}
	fw, err := mw.CreateFormFile("pattern", filename)
	if err != nil {
		return model.GenerateResponse{}, err
	}
	if _, err := fw.Write(pattern); err != nil {
		return model.GenerateResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return model.GenerateResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/generate", &body)
	if err != nil {
		return model.GenerateResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := cli.Do(req)
	if err != nil {
		return model.GenerateResponse{}, fmt.Errorf("post generate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.GenerateResponse{}, fmt.Errorf("generate status %d: %s", resp.StatusCode, string(b))
	}
	var out model.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.GenerateResponse{}, fmt.Errorf("decode generate response: %w", err)
	}
	return out, nil
}

func download(ctx context.Context, cli *http.Client, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := cli.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return n, err
	}
	if resp.StatusCode != http.StatusOK {
		return n, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return n, nil
}

// drives concurrent downloads of every panel of the job and prints latency
// percentiles
func testDownloads(ctx context.Context, cli *http.Client, base string, job model.GenerateResponse, workers, rounds int) error {
	fmt.Printf("Download test: %d panels x %d rounds, %d workers\n", job.NumPanels, rounds, workers)

	var (
		mu    sync.Mutex
		lat   []time.Duration
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for r := range rounds {
		for n := 1; n <= job.NumPanels; n++ {
			url := fmt.Sprintf("%s/jobs/%s/panels/%d", base, job.JobID, n)
			if r%2 == 1 {
				url = fmt.Sprintf("%s/download/%d", base, n)
			}
			g.Go(func() error {
				start := time.Now()
				b, err := download(gctx, cli, url)
				if err != nil {
					return err
				}
				mu.Lock()
				lat = append(lat, time.Since(start))
				total += b
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	slices.Sort(lat)
	pct := func(p float64) time.Duration { return lat[int(p*float64(len(lat)-1))] }
	fmt.Printf("downloads=%d bytes=%d p50=%s p95=%s max=%s\n",
		len(lat), total, pct(0.50), pct(0.95), lat[len(lat)-1])
	return nil
}

func testKafka(brokers []string, topic, jobID string) error {
	fmt.Println("Kafka test")

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	parts, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("partitions: %w", err)
	}
	found := make(chan string, 1)
	for _, p := range parts {
		pc, err := consumer.ConsumePartition(topic, p, sarama.OffsetOldest)
		if err != nil {
			return fmt.Errorf("consume partition %d: %w", p, err)
		}
		defer func() { _ = pc.Close() }()
		go func() {
			for m := range pc.Messages() {
				if string(m.Key) == jobID {
					select {
					case found <- string(m.Value):
					default:
					}
					return
				}
			}
		}()
	}

	select {
	case v := <-found:
		fmt.Println("consumed:", v)
	case <-time.After(5 * time.Second):
		fmt.Println("no event for job consumed (timeout)")
	}
	return nil
}

func main() {
	target := flag.String("target", getenv("TARGET_URL", "http://localhost:5000"), "panel server base URL")
	patternFile := flag.String("pattern", getenv("PATTERN_FILE", ""), "pattern image to upload (synthetic tile when empty)")
	workers := flag.Int("workers", 8, "concurrent downloads")
	rounds := flag.Int("rounds", 2, "times each panel is downloaded")
	skipRedis := flag.Bool("skip-redis", false, "skip the redis check")
	skipKafka := flag.Bool("skip-kafka", false, "skip the kafka check")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "panel-generations")
	base := strings.TrimRight(*target, "/")

	if !*skipRedis {
		if err := testRedis(ctx, redisAddr); err != nil {
			fmt.Println("Redis error:", err)
			os.Exit(1)
		}
	}

	filename := "synthetic.png"
	var pattern []byte
	if *patternFile != "" {
		b, err := os.ReadFile(*patternFile)
		if err != nil {
			fmt.Println("Pattern error:", err)
			os.Exit(1)
		}
		pattern, filename = b, filepath.Base(*patternFile)
	} else {
		b, err := syntheticPattern(600, 400)
		if err != nil {
			fmt.Println("Pattern error:", err)
			os.Exit(1)
		}
		pattern = b
	}

	cli := httpclient.NewOutbound(*workers)
	layout := map[string]string{
		"wall_width":  getenv("WALL_WIDTH", "144"),
		"wall_height": getenv("WALL_HEIGHT", "96"),
		"panel_width": getenv("PANEL_WIDTH", "24"),
		"dpi":         getenv("DPI", "72"),
		"overlap":     getenv("OVERLAP", "2"),
	}
	start := time.Now()
	job, err := generate(ctx, cli, base, filename, pattern, layout)
	if err != nil {
		fmt.Println("Generate error:", err)
		os.Exit(1)
	}
	fmt.Printf("generated job=%s panels=%d panel=%dx%d took=%s\n",
		job.JobID, job.NumPanels, job.PanelWidthPx, job.PanelHeightPx, time.Since(start))

	if err := testDownloads(ctx, cli, base, job, *workers, max(*rounds, 1)); err != nil {
		fmt.Println("Download error:", err)
		os.Exit(1)
	}

	if !*skipKafka {
		if err := testKafka(brokers, topic, job.JobID); err != nil {
			fmt.Println("Kafka error:", err)
			os.Exit(1)
		}
	}
	fmt.Println("All tests completed", strconv.Quote(job.JobID))
}
