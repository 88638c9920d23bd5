// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/heysalad_node/internal/config"
	"github.com/relabs-tech/heysalad_node/internal/motion"
)

// countsPerG for each IMU_ACCEL_RANGE setting (±2g, ±4g, ±8g, ±16g).
var countsPerG = [4]float64{16384, 8192, 4096, 2048}

type imuSource struct {
	imu   *mpu9250.MPU9250
	scale float64
}

// NewIMUSource initializes the MPU9250 over SPI and returns a reader that
// reports acceleration in g.
func NewIMUSource(cfg *config.Config, logger *zap.Logger) (motion.AccelReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	logger.Info("IMU accelerometer range set",
		zap.Int("range", int(cfg.IMUAccelRange)),
		zap.Int("full_scale_g", []int{2, 4, 8, 16}[cfg.IMUAccelRange]))

	// Calibration only trims bias; a failure still leaves a usable sensor.
	if err := imu.Calibrate(); err != nil {
		logger.Warn("IMU calibration failed", zap.Error(err))
	} else {
		logger.Info("IMU calibration complete")
	}

	return &imuSource{imu: imu, scale: countsPerG[cfg.IMUAccelRange]}, nil
}

// ReadAccel reads the three accelerometer axes and converts counts to g.
func (s *imuSource) ReadAccel() (float64, float64, float64, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel Z: %w", err)
	}
	return float64(ax) / s.scale, float64(ay) / s.scale, float64(az) / s.scale, nil
}
