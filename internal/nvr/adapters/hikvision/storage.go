package hikvision

import "context"

// StorageInfo is one HDD or NAS entry. Capacity and Freespace are in MB.
type StorageInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Capacity  int64  `json:"capacity"`
	Freespace int64  `json:"freespace"`
	Property  string `json:"property"`
	IP        string `json:"ip,omitempty"`
}

// GetStorageDevices lists local disks followed by network storage.
func (c *Client) GetStorageDevices(ctx context.Context) ([]StorageInfo, error) {
	root, err := c.Get(ctx, "ContentMgmt/Storage")
	if err != nil {
		if IsNotFound(err) || isParse(err) {
			return []StorageInfo{}, nil
		}
		return nil, err
	}

	storage := root.Get("storage")
	out := []StorageInfo{}
	for _, hdd := range storage.Get("hddList", "hdd").List() {
		out = append(out, StorageInfo{
			ID:        hdd.Get("id").Int(),
			Name:      hdd.Get("hddName").Text(),
			Type:      hdd.Get("hddType").Text(),
			Status:    hdd.Get("status").Text(),
			Capacity:  hdd.Get("capacity").Int64(),
			Freespace: hdd.Get("freeSpace").Int64(),
			Property:  hdd.Get("property").Text(),
		})
	}
	for _, nas := range storage.Get("nasList", "nas").List() {
		out = append(out, StorageInfo{
			ID:        nas.Get("id").Int(),
			Name:      nas.Get("path").Text(),
			Type:      nas.Get("nasType").Text(),
			Status:    nas.Get("status").Text(),
			Capacity:  nas.Get("capacity").Int64(),
			Freespace: nas.Get("freeSpace").Int64(),
			Property:  nas.Get("property").Text(),
			IP:        nas.Get("ipAddress").Text(),
		})
	}
	return out, nil
}
