package vulkan

import (
	"bytes"
	"encoding/binary"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const pipelineCacheHeaderVersionOne = 1

// pipelineCacheHeader is the header the driver writes at the start of
// pipeline cache data:
//
//	Offset  Size  Meaning
//	     0     4  length in bytes of the entire header
//	     4     4  header version
//	     8     4  vendor ID of the device
//	    12     4  device ID of the device
//	    16    16  pipelineCacheUUID of the device
type pipelineCacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

// parsePipelineCacheHeader reads the header of data. The header is
// always little endian.
func parsePipelineCacheHeader(data []byte) (pipelineCacheHeader, error) {
	var header pipelineCacheHeader
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header)
	if err != nil {
		return header, errors.Wrap(err, "read pipeline cache header")
	}
	return header, nil
}

// checkPipelineCacheHeader returns an error describing the first
// field of header that the device does not accept.
func checkPipelineCacheHeader(header pipelineCacheHeader, vendorID, deviceID uint32, cacheUUID uuid.UUID) error {
	if header.Length < uint32(binary.Size(header)) {
		return errors.Newf("bad header length 0x%x", header.Length)
	}
	if header.Version != pipelineCacheHeaderVersionOne {
		return errors.Newf("unsupported cache header version 0x%x", header.Version)
	}
	if header.VendorID != vendorID {
		return errors.Newf("vendor ID mismatch: cache contains 0x%x, driver expects 0x%x", header.VendorID, vendorID)
	}
	if header.DeviceID != deviceID {
		return errors.Newf("device ID mismatch: cache contains 0x%x, driver expects 0x%x", header.DeviceID, deviceID)
	}
	if header.UUID != cacheUUID {
		return errors.Newf("UUID mismatch: cache contains %s, driver expects %s", header.UUID, cacheUUID)
	}
	return nil
}

// loadPipelineCache returns the contents of the cache file if they
// were written by this device, and nil otherwise. Stale files are
// removed so that the next run repopulates them.
func (d *Device) loadPipelineCache() []byte {
	fileName := d.opts.PipelineCachePath
	if fileName == "" {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if os.IsNotExist(err) {
		log.Printf("Pipeline cache miss: %s", fileName)
		return nil
	} else if err != nil {
		log.Printf("Pipeline cache %s: %v", fileName, err)
		return nil
	}

	header, err := parsePipelineCacheHeader(data)
	if err == nil {
		err = checkPipelineCacheHeader(header, d.properties.VendorID, d.properties.DeviceID, d.properties.PipelineCacheUUID)
	}
	if err != nil {
		log.Printf("Pipeline cache %s: %v, deleting it to repopulate", fileName, err)
		_ = os.Remove(fileName)
		return nil
	}

	log.Printf("Pipeline cache hit: %s", fileName)
	return data
}

func (d *Device) createPipelineCache() error {
	var err error
	d.pipelineCache, _, err = d.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: d.loadPipelineCache(),
	})
	return err
}

func (d *Device) savePipelineCache() error {
	if d.opts.PipelineCachePath == "" {
		return nil
	}

	data, _, err := d.deviceDriver.GetPipelineCacheData(d.pipelineCache)
	if err != nil {
		return err
	}
	return os.WriteFile(d.opts.PipelineCachePath, data, 0666)
}
