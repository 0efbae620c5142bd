package display

/*
#include <drm/drm.h>
#include <drm/drm_mode.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const connectionConnected = 1 // DRM_MODE_CONNECTED

// mode mirrors the fields of this package's selection logic plus the raw
// drm_mode_modeinfo bytes, which must be echoed back verbatim to SETCRTC.
type mode struct {
	width, height uint32
	raw           [C.sizeof_struct_drm_mode_modeinfo]byte
}

type resources struct {
	crtcIDs      []uint32
	connectorIDs []uint32
	encoderIDs   []uint32
}

func getResources(fd uintptr) (resources, error) {
	var res C.struct_drm_mode_card_res
	if errno := ioctl(fd, uintptr(C.DRM_IOCTL_MODE_GETRESOURCES), uintptr(unsafe.Pointer(&res))); errno != 0 {
		return resources{}, fmt.Errorf("display: get resources: %w: %v", ErrDeviceUnavailable, errno)
	}

	crtcIDs := make([]uint32, res.count_crtcs)
	connectorIDs := make([]uint32, res.count_connectors)
	encoderIDs := make([]uint32, res.count_encoders)
	if len(crtcIDs) > 0 {
		res.crtc_id_ptr = C.__u64(uintptr(unsafe.Pointer(&crtcIDs[0])))
	}
	if len(connectorIDs) > 0 {
		res.connector_id_ptr = C.__u64(uintptr(unsafe.Pointer(&connectorIDs[0])))
	}
	if len(encoderIDs) > 0 {
		res.encoder_id_ptr = C.__u64(uintptr(unsafe.Pointer(&encoderIDs[0])))
	}

	if errno := ioctl(fd, uintptr(C.DRM_IOCTL_MODE_GETRESOURCES), uintptr(unsafe.Pointer(&res))); errno != 0 {
		return resources{}, fmt.Errorf("display: get resources (populate): %w: %v", ErrDeviceUnavailable, errno)
	}

	return resources{crtcIDs: crtcIDs, connectorIDs: connectorIDs, encoderIDs: encoderIDs}, nil
}

type connectorInfo struct {
	id          uint32
	encoderID   uint32 // current encoder, may be 0
	connected   bool
	modes       []mode
}

func getConnector(fd uintptr, connectorID uint32) (connectorInfo, error) {
	var conn C.struct_drm_mode_get_connector
	conn.connector_id = C.__u32(connectorID)

	if errno := ioctl(fd, uintptr(C.DRM_IOCTL_MODE_GETCONNECTOR), uintptr(unsafe.Pointer(&conn))); errno != 0 {
		return connectorInfo{}, fmt.Errorf("display: get connector %d: %v", connectorID, errno)
	}

	modes := make([]C.struct_drm_mode_modeinfo, conn.count_modes)
	if conn.count_modes > 0 {
		conn.modes_ptr = C.__u64(uintptr(unsafe.Pointer(&modes[0])))
	}
	// encoders/props are irrelevant to this pipeline's single-output scan.
	conn.count_encoders = 0
	conn.count_props = 0
	conn.encoders_ptr = 0
	conn.props_ptr = 0
	conn.prop_values_ptr = 0

	if errno := ioctl(fd, uintptr(C.DRM_IOCTL_MODE_GETCONNECTOR), uintptr(unsafe.Pointer(&conn))); errno != 0 {
		return connectorInfo{}, fmt.Errorf("display: get connector %d (populate): %v", connectorID, errno)
	}

	out := connectorInfo{
		id:        connectorID,
		encoderID: uint32(conn.encoder_id),
		connected: conn.connection == connectionConnected,
	}
	for _, m := range modes {
		out.modes = append(out.modes, modeFromC(&m))
	}
	return out, nil
}

func modeFromC(m *C.struct_drm_mode_modeinfo) mode {
	var mo mode
	mo.width = uint32(m.hdisplay)
	mo.height = uint32(m.vdisplay)
	copy(mo.raw[:], (*[C.sizeof_struct_drm_mode_modeinfo]byte)(unsafe.Pointer(m))[:])
	return mo
}

// pick1080pOrFirst implements spec.md §4.5 step 2's mode-selection rule.
func pick1080pOrFirst(modes []mode) (mode, bool) {
	if len(modes) == 0 {
		return mode{}, false
	}
	for _, m := range modes {
		if m.width == 1920 && m.height == 1080 {
			return m, true
		}
	}
	return modes[0], true
}

type encoderInfo struct {
	id            uint32
	crtcID        uint32 // active CRTC, may be 0
	possibleCRTCs uint32 // bitmask, bit i = resources.crtcIDs[i]
}

func getEncoder(fd uintptr, encoderID uint32) (encoderInfo, error) {
	var enc C.struct_drm_mode_get_encoder
	enc.encoder_id = C.__u32(encoderID)

	if errno := ioctl(fd, uintptr(C.DRM_IOCTL_MODE_GETENCODER), uintptr(unsafe.Pointer(&enc))); errno != 0 {
		return encoderInfo{}, fmt.Errorf("display: get encoder %d: %v", encoderID, errno)
	}
	return encoderInfo{
		id:            encoderID,
		crtcID:        uint32(enc.crtc_id),
		possibleCRTCs: uint32(enc.possible_crtcs),
	}, nil
}

// acquireCRTC implements spec.md §4.5 step 4: prefer the encoder's active
// CRTC, else scan its possible-CRTC mask and accept the first that can be
// queried successfully (a minimal stand-in for "acquisition succeeds").
func acquireCRTC(fd uintptr, enc encoderInfo, res resources) (uint32, error) {
	if enc.crtcID != 0 {
		return enc.crtcID, nil
	}
	for i, id := range res.crtcIDs {
		if enc.possibleCRTCs&(1<<uint(i)) == 0 {
			continue
		}
		var crtc C.struct_drm_mode_crtc
		crtc.crtc_id = C.__u32(id)
		if errno := ioctl(fd, uintptr(C.DRM_IOCTL_MODE_GETCRTC), uintptr(unsafe.Pointer(&crtc))); errno == 0 {
			return id, nil
		}
	}
	return 0, ErrNoCRTC
}
