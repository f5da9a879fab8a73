package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ModelsDir      string `yaml:"models_dir"`
	EncoderPath    string `yaml:"encoder_path"`
	DecoderPath    string `yaml:"decoder_path"`
	EncoderURL     string `yaml:"encoder_url"`
	DecoderURL     string `yaml:"decoder_url"`
	ORTLibraryPath string `yaml:"ort_library_path"`
	DataDir        string `yaml:"data_dir"`
	Port           string `yaml:"port"`
	GRPCAddr       string `yaml:"grpc_addr"`
	WaveformLength int    `yaml:"waveform_length"`
	LatentDim      int    `yaml:"latent_dim"`
}

// Default значения по умолчанию: модели лежат в ./model_ecg
func Default() *Config {
	return &Config{
		ModelsDir:      "model_ecg",
		DataDir:        "data",
		Port:           "8080",
		WaveformLength: 400,
		LatentDim:      25,
	}
}

func Load() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse разбирает флаги. Если указан -config, сначала читается YAML файл,
// затем явно заданные флаги перекрывают его значения.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("ecglatent", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	modelsDir := fs.String("models", "", "Directory with onnx_encoder.onnx / onnx_decoder.onnx")
	encoderPath := fs.String("encoder", "", "Path to encoder ONNX graph (default: models/onnx_encoder.onnx)")
	decoderPath := fs.String("decoder", "", "Path to decoder ONNX graph (default: models/onnx_decoder.onnx)")
	encoderURL := fs.String("encoder-url", "", "URL to download encoder graph from if missing")
	decoderURL := fs.String("decoder-url", "", "URL to download decoder graph from if missing")
	ortLib := fs.String("ort-lib", "", "Path to ONNX Runtime shared library")
	dataDir := fs.String("data", "", "Directory for prototypes store")
	port := fs.String("port", "", "HTTP/WebSocket port")
	grpcAddr := fs.String("grpc", "", "gRPC address (unix:///path, npipe:..., host:port)")
	waveformLength := fs.Int("length", 0, "Waveform length expected by the encoder")
	latentDim := fs.Int("latent", 0, "Latent dimension expected by the decoder")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	// Флаги перекрывают файл только если заданы явно
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "models":
			cfg.ModelsDir = *modelsDir
		case "encoder":
			cfg.EncoderPath = *encoderPath
		case "decoder":
			cfg.DecoderPath = *decoderPath
		case "encoder-url":
			cfg.EncoderURL = *encoderURL
		case "decoder-url":
			cfg.DecoderURL = *decoderURL
		case "ort-lib":
			cfg.ORTLibraryPath = *ortLib
		case "data":
			cfg.DataDir = *dataDir
		case "port":
			cfg.Port = *port
		case "grpc":
			cfg.GRPCAddr = *grpcAddr
		case "length":
			cfg.WaveformLength = *waveformLength
		case "latent":
			cfg.LatentDim = *latentDim
		}
	})

	if cfg.EncoderPath == "" {
		cfg.EncoderPath = filepath.Join(cfg.ModelsDir, "onnx_encoder.onnx")
	}
	if cfg.DecoderPath == "" {
		cfg.DecoderPath = filepath.Join(cfg.ModelsDir, "onnx_decoder.onnx")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.WaveformLength <= 0 {
		return errors.New("waveform length must be positive")
	}
	if c.LatentDim <= 0 {
		return errors.New("latent dimension must be positive")
	}
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	return nil
}
