package va

type (
	ConfigID  uint32
	ContextID uint32
	SurfaceID uint32
	BufferID  uint32
	ImageID   uint32
)

// InvalidID is VA_INVALID_ID.
const InvalidID = 0xffffffff

// Profile is a VAProfile.
type Profile int32

const (
	ProfileNone         Profile = -1
	ProfileMPEG2Simple  Profile = 0
	ProfileMPEG2Main    Profile = 1
	ProfileH264Main     Profile = 6
	ProfileH264High     Profile = 7
	ProfileVP8Version03 Profile = 14
	ProfileHEVCMain     Profile = 17
	ProfileVP9Profile0  Profile = 19
	ProfileAV1Profile0  Profile = 32
)

// Entrypoint is a VAEntrypoint.
type Entrypoint int32

const (
	EntrypointVLD              Entrypoint = 1
	EntrypointEncSlice         Entrypoint = 6
	EntrypointVideoProc        Entrypoint = 10
	EntrypointProtectedContent Entrypoint = 14
)

// BufferType is a VABufferType.
type BufferType int32

const (
	PictureParameterBuffer BufferType = 0
	IQMatrixBuffer         BufferType = 1
	SliceParameterBuffer   BufferType = 4
	SliceDataBuffer        BufferType = 5
)

const (
	RTFormatYUV420 uint32 = 0x00000001

	FourCCNV12 uint32 = 0x3231564e
	FourCCI420 uint32 = 0x30323449
)

// Resolution is a width and height in pixels.
type Resolution struct {
	Width  uint32
	Height uint32
}

// ImageFormat mirrors VAImageFormat.
type ImageFormat struct {
	FourCC       uint32
	ByteOrder    uint32
	BitsPerPixel uint32
	Depth        uint32
	RedMask      uint32
	GreenMask    uint32
	BlueMask     uint32
	AlphaMask    uint32
}

// ImageInfo mirrors VAImage.
type ImageInfo struct {
	ID        ImageID
	Format    ImageFormat
	Buffer    BufferID
	Width     uint16
	Height    uint16
	DataSize  uint32
	NumPlanes uint32
	Pitches   [3]uint32
	Offsets   [3]uint32
}

// Driver is the set of libva entry points the package uses. Failed calls
// return a *StatusError.
type Driver interface {
	Initialize() (major, minor int, err error)
	Terminate() error
	Vendor() string

	CreateConfig(profile Profile, entrypoint Entrypoint) (ConfigID, error)
	DestroyConfig(id ConfigID) error
	CreateSurfaces(format uint32, res Resolution, n int) ([]SurfaceID, error)
	DestroySurfaces(ids []SurfaceID) error
	CreateContext(config ConfigID, res Resolution, progressive bool, targets []SurfaceID) (ContextID, error)
	DestroyContext(id ContextID) error

	CreateBuffer(ctx ContextID, typ BufferType, data []byte) (BufferID, error)
	DestroyBuffer(id BufferID) error
	MapBuffer(id BufferID, size int) ([]byte, error)
	UnmapBuffer(id BufferID) error

	BeginPicture(ctx ContextID, target SurfaceID) error
	RenderPicture(ctx ContextID, buffers []BufferID) error
	EndPicture(ctx ContextID) error
	SyncSurface(id SurfaceID) error

	CreateImage(format ImageFormat, res Resolution) (ImageInfo, error)
	DeriveImage(surface SurfaceID) (ImageInfo, error)
	GetImage(surface SurfaceID, res Resolution, image ImageID) error
	DestroyImage(id ImageID) error
}
